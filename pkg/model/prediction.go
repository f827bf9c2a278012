package model

// Source names the subsystem that produced a prediction
type Source string

const (
	SourceModelMemory    Source = "model+memory"
	SourceModel          Source = "model"
	SourceVectorDB       Source = "vector_db"
	SourceExternalOracle Source = "external_oracle"
	SourceDegraded       Source = "memory:degraded"
)

// Classification is the output of a probabilistic classifier oracle
type Classification struct {
	Label        string
	Confidence   float64
	Distribution Distribution
}

// Prediction is a single-task answer with provenance
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// Result is the combined answer for one request
type Result struct {
	Emotion Prediction `json:"emotion"`
	Intent  Prediction `json:"intent"`
	Tags    Tags       `json:"tags"`
}
