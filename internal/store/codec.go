package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/echovault/echovault/internal/model"
)

// EntryColumns is the column order shared by the SQL drivers.
const EntryColumns = `entry_id, user_id, text, title, category, created_at, effective_date, embedding,
analysis_status, entry_type, tags, mood_score, analysis, insight, extracted_tasks, continues_situation,
goal_update, context_version, safety_flagged, warning_indicators, temporal_context, future_mentions, updated_at`

// EntryColumnCount is the number of columns in EntryColumns.
const EntryColumnCount = 23

// MutableColumns are rewritten by Update. Identity, text, dates and safety flags never change
// after Create.
var MutableColumns = []string{
	"title", "category", "embedding", "analysis_status", "entry_type", "tags", "mood_score", "analysis",
	"insight", "extracted_tasks", "continues_situation", "goal_update", "context_version", "updated_at",
}

// positions of MutableColumns inside EntryColumns
var mutableIdx = []int{3, 4, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 22}

// MutableArgs returns the values for MutableColumns, in order.
func MutableArgs(e *model.Entry) ([]any, error) {
	all, err := EntryArgs(e)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(mutableIdx))
	for i, idx := range mutableIdx {
		out[i] = all[idx]
	}
	return out, nil
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// EntryArgs flattens e into values matching EntryColumns.
func EntryArgs(e *model.Entry) ([]any, error) {
	var emb []byte
	if e.HasEmbedding() {
		b, err := EncodeVector(e.Embedding)
		if err != nil {
			return nil, err
		}
		emb = b
	}
	var mood any
	if e.MoodScore != nil {
		mood = *e.MoodScore
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		e.ID, e.UserID, e.Text, e.Title, e.Category, e.CreatedAt.UTC(), e.EffectiveDate.UTC(), emb,
		string(e.AnalysisStatus), string(e.EntryType), jsonText(tags), mood, jsonOrNil(e.Analysis),
		jsonOrNil(e.Insight), jsonOrNil(e.ExtractedTasks), e.ContinuesSituation, jsonOrNil(e.GoalUpdate),
		e.ContextVersion, e.SafetyFlagged, e.WarningIndicators, jsonOrNil(e.TemporalContext),
		jsonOrNil(e.FutureMentions), e.UpdatedAt.UTC(),
	}, nil
}

// ScanEntry reads one row selected with EntryColumns.
func ScanEntry(s Scanner) (*model.Entry, error) {
	var (
		e                                    model.Entry
		emb                                  []byte
		status, entryType                    string
		tags, analysis, insight, tasks, goal sql.NullString
		temporal, future, title, continues   sql.NullString
		mood                                 sql.NullFloat64
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.Text, &title, &e.Category, &e.CreatedAt, &e.EffectiveDate, &emb,
		&status, &entryType, &tags, &mood, &analysis, &insight, &tasks, &continues, &goal,
		&e.ContextVersion, &e.SafetyFlagged, &e.WarningIndicators, &temporal, &future, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Title = title.String
	e.ContinuesSituation = continues.String
	e.AnalysisStatus = model.AnalysisStatus(status)
	e.EntryType = model.EntryType(entryType)
	if mood.Valid {
		v := mood.Float64
		e.MoodScore = &v
	}
	if len(emb) > 0 {
		vec, err := DecodeVector(emb)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.Embedding = vec
	}
	decodeJSON(tags, &e.Tags)
	if e.Tags == nil {
		e.Tags = []string{}
	}
	decodeJSON(analysis, &e.Analysis)
	decodeJSON(insight, &e.Insight)
	decodeJSON(tasks, &e.ExtractedTasks)
	decodeJSON(goal, &e.GoalUpdate)
	decodeJSON(temporal, &e.TemporalContext)
	decodeJSON(future, &e.FutureMentions)
	return &e, nil
}

func jsonText(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonOrNil(v any) any {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return string(b)
}

func decodeJSON(ns sql.NullString, dst any) {
	if !ns.Valid || ns.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(ns.String), dst)
}

const (
	vectorBlobHeaderSize = 4
	vectorValueByteSize  = 4
)

// EncodeVector encodes a float32 vector into a binary blob.
// Format: [4-byte little-endian dimension][N x 4-byte little-endian float32 values].
func EncodeVector(vector []float32) ([]byte, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("encode vector: empty vector")
	}
	blob := make([]byte, vectorBlobHeaderSize+len(vector)*vectorValueByteSize)
	binary.LittleEndian.PutUint32(blob[:vectorBlobHeaderSize], uint32(len(vector)))
	offset := vectorBlobHeaderSize
	for i, value := range vector {
		if math.IsNaN(float64(value)) || math.IsInf(float64(value), 0) {
			return nil, fmt.Errorf("encode vector: invalid value at index %d", i)
		}
		binary.LittleEndian.PutUint32(blob[offset:offset+vectorValueByteSize], math.Float32bits(value))
		offset += vectorValueByteSize
	}
	return blob, nil
}

// DecodeVector decodes a blob created by EncodeVector.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob) < vectorBlobHeaderSize {
		return nil, fmt.Errorf("decode vector: invalid blob length: %d", len(blob))
	}
	dim := int(binary.LittleEndian.Uint32(blob[:vectorBlobHeaderSize]))
	if dim <= 0 || len(blob) != vectorBlobHeaderSize+dim*vectorValueByteSize {
		return nil, fmt.Errorf("decode vector: dimension mismatch: dim=%d payload=%d", dim, len(blob)-vectorBlobHeaderSize)
	}
	vector := make([]float32, dim)
	offset := vectorBlobHeaderSize
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[offset : offset+vectorValueByteSize]))
		offset += vectorValueByteSize
	}
	return vector, nil
}
