package models

import (
	"encoding/json"
	"time"
)

// Application states. Match, behavioral and classification results are
// optional fields and never change the state.
const (
	StateSubmitted         = "submitted"
	StateAssessmentPending = "assessment_pending"
	StateEvaluated         = "evaluated"
)

const DefaultClassification = "Pending"

type Assessment struct {
	MCQTopics       []string `json:"mcq_topics"`
	MCQsPerTopic    int      `json:"mcqs_per_topic"`
	CodingTopics    []string `json:"coding_topics,omitempty"`
	CodingQuestions int      `json:"coding_questions,omitempty"`
}

// QuestionCount is the size of the MCQ set generated for a job.
func (a Assessment) QuestionCount() int {
	return len(a.MCQTopics) * a.MCQsPerTopic
}

type Job struct {
	ID           string     `json:"_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Location     string     `json:"location"`
	Salary       string     `json:"salary"`
	Requirements []string   `json:"requirements"`
	Assessment   Assessment `json:"assessment"`
	Created      time.Time  `json:"created_at"`
	Updated      time.Time  `json:"updated_at"`
}

type Application struct {
	ID              string           `json:"_id"`
	JobID           string           `json:"job_id"`
	JobTitle        *string          `json:"job_title"`
	CandidateName   string           `json:"name"`
	Email           string           `json:"email"`
	ResumeRef       string           `json:"resume"`
	VideoRef        string           `json:"video"`
	Classification  string           `json:"classification"`
	Skills          []string         `json:"skills"`
	MatchScore      *float64         `json:"match_score"`
	MCQScore        *float64         `json:"mcq_score"`
	BehavioralScore *BehavioralScore `json:"behavioral_score"`
	State           string           `json:"state"`
	AppliedAt       time.Time        `json:"applied_at"`
	EvaluatedAt     *time.Time       `json:"evaluated_at,omitempty"`
}

type BehavioralScore struct {
	Facial FacialScore `json:"facial"`
	Voice  VoiceScore  `json:"voice"`
	Text   TextScore   `json:"text"`
}

type FacialScore struct {
	Confidence          float64              `json:"confidence"`
	Engagement          float64              `json:"engagement"`
	Stress              float64              `json:"stress"`
	EmotionDistribution *EmotionDistribution `json:"emotion_distribution,omitempty"`
}

// EmotionDistribution holds percentages for display only.
type EmotionDistribution struct {
	Happy   float64 `json:"happy"`
	Neutral float64 `json:"neutral"`
	Nervous float64 `json:"nervous"`
}

type VoiceScore struct {
	Features VoiceFeatures `json:"features"`
	Scores   VoiceScores   `json:"scores"`
}

type VoiceFeatures struct {
	PitchMean   float64 `json:"pitch_mean"`
	PitchStd    float64 `json:"pitch_std"`
	SpeechRate  float64 `json:"speech_rate"`
	EnergyVar   float64 `json:"energy_var"`
	DurationSec float64 `json:"duration_sec"`
}

type VoiceScores struct {
	Confidence  float64  `json:"confidence"`
	Clarity     float64  `json:"clarity"`
	Nervousness *float64 `json:"nervousness,omitempty"`
}

type TextScore struct {
	Sentiment Sentiment `json:"sentiment"`
}

type Sentiment struct {
	Pos      float64 `json:"pos"`
	Neu      float64 `json:"neu"`
	Neg      float64 `json:"neg"`
	Compound float64 `json:"compound"`
}

// MCQQuestion is the stored question including its answer key. It is never
// serialized to candidates; use Public for that.
type MCQQuestion struct {
	ID       string
	JobID    string
	Position int
	Topic    string
	Question string
	Options  []string
	Answer   string
	Created  time.Time
}

// PublicQuestion is the candidate-facing shape. It has no answer field.
type PublicQuestion struct {
	ID       string   `json:"_id"`
	Topic    string   `json:"topic,omitempty"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (q MCQQuestion) Public() PublicQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return PublicQuestion{ID: q.ID, Topic: q.Topic, Question: q.Question, Options: opts}
}

type MCQResponse struct {
	QuestionID string `json:"questionId"`
	Selected   string `json:"selected"`
}

// Task is a row of the background task queue.
type Task struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
