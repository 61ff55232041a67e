package model

import "time"

// AnalysisStatus tracks whether enrichment has settled for an entry.
type AnalysisStatus string

const (
	AnalysisPending  AnalysisStatus = "pending"
	AnalysisComplete AnalysisStatus = "complete"
)

// EntryType is the classification outcome for an entry.
type EntryType string

const (
	EntryReflection EntryType = "reflection"
	EntryTask       EntryType = "task"
	EntryVent       EntryType = "vent"
	EntryMixed      EntryType = "mixed"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntryReflection, EntryTask, EntryVent, EntryMixed:
		return true
	}
	return false
}

// Entry categories.
const (
	CategoryPersonal = "personal"
	CategoryWork     = "work"
)

// NeutralMood is written by the fallback path when analysis could not run.
const NeutralMood = 0.5

// Entry is the central journal record.
type Entry struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"userId"`
	Text               string           `json:"text"`
	Title              string           `json:"title,omitempty"`
	Category           string           `json:"category"`
	CreatedAt          time.Time        `json:"createdAt"`
	EffectiveDate      time.Time        `json:"effectiveDate"`
	Embedding          []float32        `json:"embedding,omitempty"`
	AnalysisStatus     AnalysisStatus   `json:"analysisStatus"`
	EntryType          EntryType        `json:"entryType"`
	Tags               []string         `json:"tags"`
	MoodScore          *float64         `json:"moodScore,omitempty"`
	Analysis           *Analysis        `json:"analysis,omitempty"`
	Insight            *Insight         `json:"insight,omitempty"`
	ExtractedTasks     []string         `json:"extractedTasks,omitempty"`
	ContinuesSituation string           `json:"continuesSituation,omitempty"`
	GoalUpdate         *GoalUpdate      `json:"goalUpdate,omitempty"`
	ContextVersion     int              `json:"contextVersion"`
	SafetyFlagged      bool             `json:"safetyFlagged"`
	WarningIndicators  bool             `json:"warningIndicators"`
	TemporalContext    *TemporalContext `json:"temporalContext,omitempty"`
	FutureMentions     []FutureMention  `json:"futureMentions,omitempty"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// HasEmbedding reports whether a usable vector is stored on the entry.
func (e *Entry) HasEmbedding() bool { return len(e.Embedding) > 0 }

// Analysis holds the structured output of sentiment/CBT analysis.
type Analysis struct {
	Framework          string        `json:"framework,omitempty"`
	CBTBreakdown       *CBTBreakdown `json:"cbtBreakdown,omitempty"`
	VentSupport        string        `json:"ventSupport,omitempty"`
	Celebration        string        `json:"celebration,omitempty"`
	TaskAcknowledgment string        `json:"taskAcknowledgment,omitempty"`
}

// CBTBreakdown is the cognitive-behavioural reading of an entry.
type CBTBreakdown struct {
	AutomaticThought   string `json:"automaticThought,omitempty"`
	Distortion         string `json:"distortion,omitempty"`
	Challenge          string `json:"challenge,omitempty"`
	AlternativeThought string `json:"alternativeThought,omitempty"`
}

// Insight is a pattern or callback to earlier entries surfaced during enrichment.
type Insight struct {
	Found             bool     `json:"found"`
	Type              string   `json:"type,omitempty"`
	Message           string   `json:"message,omitempty"`
	FollowUpQuestions []string `json:"followUpQuestions,omitempty"`
}

// GoalUpdate records progress against a goal mentioned in an earlier entry.
type GoalUpdate struct {
	Tag    string `json:"tag"`
	Status string `json:"status"`
}

// TemporalContext describes how the effective date was derived.
type TemporalContext struct {
	Detected       bool      `json:"detected"`
	OriginalPhrase string    `json:"originalPhrase,omitempty"`
	DetectedDate   time.Time `json:"detectedDate,omitempty"`
	Confidence     float64   `json:"confidence"`
	Backdated      bool      `json:"backdated"`
}

// FutureMention is a forward-looking phrase kept for follow-up features.
type FutureMention struct {
	Phrase string     `json:"phrase"`
	Date   *time.Time `json:"date,omitempty"`
	Event  string     `json:"event,omitempty"`
}

// EntryPatch is a partial update. Nil fields are left untouched by stores.
//
// Enrichment and user edits write disjoint fields: users set Title and Category,
// enrichment sets DefaultTitle which only applies while the stored title is empty.
type EntryPatch struct {
	Title              *string
	DefaultTitle       *string
	Category           *string
	Embedding          []float32
	AnalysisStatus     *AnalysisStatus
	EntryType          *EntryType
	Tags               *[]string
	MoodScore          *float64
	Analysis           *Analysis
	Insight            *Insight
	ExtractedTasks     *[]string
	ContinuesSituation *string
	GoalUpdate         *GoalUpdate
	ContextVersion     *int
}

// IsEmpty reports whether the patch carries no changes.
func (p EntryPatch) IsEmpty() bool {
	return p.Title == nil && p.DefaultTitle == nil && p.Category == nil && p.Embedding == nil &&
		p.AnalysisStatus == nil && p.EntryType == nil && p.Tags == nil && p.MoodScore == nil &&
		p.Analysis == nil && p.Insight == nil && p.ExtractedTasks == nil &&
		p.ContinuesSituation == nil && p.GoalUpdate == nil && p.ContextVersion == nil
}

// Apply merges the patch into e using the same rules the SQL stores follow.
func (p EntryPatch) Apply(e *Entry) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.DefaultTitle != nil && e.Title == "" {
		e.Title = *p.DefaultTitle
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Embedding != nil {
		e.Embedding = append([]float32(nil), p.Embedding...)
	}
	if p.AnalysisStatus != nil {
		e.AnalysisStatus = *p.AnalysisStatus
	}
	if p.EntryType != nil {
		e.EntryType = *p.EntryType
	}
	if p.Tags != nil {
		e.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.MoodScore != nil {
		v := *p.MoodScore
		e.MoodScore = &v
	}
	if p.Analysis != nil {
		e.Analysis = p.Analysis
	}
	if p.Insight != nil {
		e.Insight = p.Insight
	}
	if p.ExtractedTasks != nil {
		e.ExtractedTasks = append([]string{}, (*p.ExtractedTasks)...)
	}
	if p.ContinuesSituation != nil {
		e.ContinuesSituation = *p.ContinuesSituation
	}
	if p.GoalUpdate != nil {
		e.GoalUpdate = p.GoalUpdate
	}
	if p.ContextVersion != nil && *p.ContextVersion > e.ContextVersion {
		e.ContextVersion = *p.ContextVersion
	}
}

// OfflineQueueItem is an entry captured while disconnected, not yet persisted.
type OfflineQueueItem struct {
	OfflineID string `json:"offlineId"`
	Entry     Entry  `json:"entry"`
}

// RetrofitProgress describes an in-flight maintenance pass.
type RetrofitProgress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// ListEntriesRequest captures filters used when listing entries.
type ListEntriesRequest struct {
	UserID string
	Limit  int
	Before *time.Time
	After  *time.Time
}
