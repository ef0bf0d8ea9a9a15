package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/jobmatch/internal/db"
)

const vectorScoreField = "__vector_score"

// scorer derives a hit's score from the WITHSCORES token (empty when absent)
// and its returned fields. Hits it rejects are dropped.
type scorer func(token string, fields map[string]string) (float64, bool)

// cosineScore reads the KNN distance alias and converts it to 1 - distance.
// The result may be negative.
func cosineScore(_ string, fields map[string]string) (float64, bool) {
	raw, ok := fields[vectorScoreField]
	delete(fields, vectorScoreField)
	if !ok {
		return 0, false
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return 1 - d, true
}

func bm25Score(token string, _ map[string]string) (float64, bool) {
	v, err := strconv.ParseFloat(token, 64)
	return v, err == nil
}

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case len(q.Vector) == 0:
		return nil, fmt.Errorf("vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive")
	}
	field := q.VectorField
	if field == "" {
		field = "vector"
	}

	args := []string{q.IndexName, fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", q.K, field, vectorScoreField)}
	if len(q.ReturnFields) > 0 {
		args = appendReturn(args, append(append([]string{}, q.ReturnFields...), vectorScoreField))
	}
	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)
	return s.search(ctx, db.OpSearchKNN, q.IndexName, args, false, cosineScore)
}

// SearchBM25 runs a BM25 text search over one TEXT field via FT.SEARCH.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case strings.TrimSpace(q.Query) == "":
		return nil, fmt.Errorf("query is required")
	case q.TopK <= 0:
		return nil, fmt.Errorf("topK must be positive")
	}
	field := q.Field
	if field == "" {
		field = "content"
	}

	args := []string{q.IndexName, fmt.Sprintf("@%s:(%s)", field, escapeQuery(q.Query))}
	if len(q.ReturnFields) > 0 {
		args = appendReturn(args, q.ReturnFields)
	}
	args = append(args,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"DIALECT", "2",
	)
	return s.search(ctx, db.OpSearchText, q.IndexName, args, true, bm25Score)
}

// SearchCount returns the number of indexed documents via FT.SEARCH with LIMIT 0 0.
func (s *Store) SearchCount(ctx context.Context, index string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearchCount, Key: index, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearchCount, Key: index, Err: fmt.Errorf("parse total: %w", err)}
	}
	return int(total), nil
}

func appendReturn(args, fields []string) []string {
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

func (s *Store) search(ctx context.Context, op db.Op, index string, args []string, withScores bool, score scorer) (*db.SearchResult, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: op, Key: index, Err: err}
	}
	res, err := parseHits(raw, withScores, score)
	if err != nil {
		return nil, &db.Error{Op: op, Key: index, Err: err}
	}
	return res, nil
}

// parseHits decodes an RESP2 FT.SEARCH reply: [total, key, fields, ...], or
// [total, key, score, fields, ...] under WITHSCORES. Malformed hits are skipped.
func parseHits(raw []rueidis.RedisMessage, withScores bool, score scorer) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	stride := 2
	if withScores {
		stride = 3
	}
	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		var token string
		if withScores {
			if token, err = raw[i+1].ToString(); err != nil {
				continue
			}
		}
		pairs, err := raw[i+stride-1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(pairs)
		v, ok := score(token, fields)
		if !ok {
			continue
		}
		res.Hits = append(res.Hits, db.Hit{Key: key, Score: v, Fields: fields})
	}
	return res, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query helpers ---

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`/`, `\/`,
	`.`, `\.`,
	`,`, `\,`,
)

// VectorToBytes encodes a vector as little-endian FLOAT32, the HASH vector field format.
func VectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// BytesToVector decodes a FLOAT32 blob written by VectorToBytes.
func BytesToVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func vectorToBytes(v []float32) string {
	return string(VectorToBytes(v))
}
