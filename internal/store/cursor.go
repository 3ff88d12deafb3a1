package store

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mavprep/voice/internal/domain"
)

// position is the (timestamp, id) key messages are ordered by.
type position struct {
	ts int64
	id domain.MessageID
}

var start = position{ts: math.MinInt64}

func (p position) after(o position) bool {
	if p.ts != o.ts {
		return p.ts > o.ts
	}
	return p.id > o.id
}

func positionOf(m domain.Message) position {
	return position{ts: m.Timestamp.UnixNano(), id: m.ID}
}

func encodeCursor(p position) string {
	raw := strconv.FormatInt(p.ts, 10) + "#" + string(p.id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (position, error) {
	if s == "" {
		return start, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return position{}, fmt.Errorf("%w: bad cursor", domain.ErrInvalidRequest)
	}
	tsPart, id, ok := strings.Cut(string(raw), "#")
	if !ok {
		return position{}, fmt.Errorf("%w: bad cursor", domain.ErrInvalidRequest)
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return position{}, fmt.Errorf("%w: bad cursor", domain.ErrInvalidRequest)
	}
	return position{ts: ts, id: domain.MessageID(id)}, nil
}
