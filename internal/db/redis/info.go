package redis

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/talk2shop/internal/db"
)

// IndexInfo reads FT.INFO. An unknown index yields db.ErrIndexNotFound.
func (s *Store) IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return parseIndexInfo(raw), nil
}

// parseIndexInfo walks the RESP2 key/value list. Servers disagree on whether counters
// are strings, integers or doubles, so every scalar goes through msgString.
func parseIndexInfo(raw []rueidis.RedisMessage) *db.IndexInfo {
	info := &db.IndexInfo{PercentIndexed: 1}

	for i := 0; i+1 < len(raw); i += 2 {
		key, ok := msgString(&raw[i])
		if !ok {
			continue
		}
		val := &raw[i+1]

		switch key {
		case "index_name":
			info.Name, _ = msgString(val)
		case "num_docs":
			info.NumDocs = int64(scalarFloat(val))
		case "indexing":
			info.Indexing = scalarFloat(val) != 0
		case "percent_indexed":
			info.PercentIndexed = scalarFloat(val)
		case "attributes":
			info.Attributes = parseAttributes(val)
		}
	}

	return info
}

func parseAttributes(m *rueidis.RedisMessage) []db.IndexAttribute {
	items, err := m.ToArray()
	if err != nil {
		return nil
	}

	out := make([]db.IndexAttribute, 0, len(items))
	for i := range items {
		pairs, err := items[i].ToArray()
		if err != nil {
			continue
		}
		var a db.IndexAttribute
		for j := 0; j+1 < len(pairs); j += 2 {
			k, ok := msgString(&pairs[j])
			if !ok {
				continue
			}
			switch strings.ToLower(k) {
			case "identifier":
				a.Identifier, _ = msgString(&pairs[j+1])
			case "attribute":
				a.Attribute, _ = msgString(&pairs[j+1])
			case "type":
				a.Type, _ = msgString(&pairs[j+1])
			case "dim":
				a.Dim = int(scalarFloat(&pairs[j+1]))
			}
		}
		out = append(out, a)
	}
	return out
}

func scalarFloat(m *rueidis.RedisMessage) float64 {
	s, ok := msgString(m)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
