package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// GenomeRecord stores one genome as its raw little-endian weight buffer.
type GenomeRecord struct {
	VersionedRecord
	ID         string `json:"id"`
	Topology   []int  `json:"topology"`
	Activation string `json:"activation"`
	Weights    []byte `json:"weights"`
}

type IndividualRecord struct {
	Score   float32 `json:"score"`
	Weights []byte  `json:"weights"`
}

// PopulationSnapshot is a population in rank order, as left by the last
// scored generation of a run.
type PopulationSnapshot struct {
	VersionedRecord
	ID          string             `json:"id"`
	RunID       string             `json:"run_id"`
	Generation  int                `json:"generation"`
	Topology    []int              `json:"topology"`
	Activation  string             `json:"activation"`
	ToUse       int                `json:"to_use"`
	Immutable   int                `json:"immutable"`
	Individuals []IndividualRecord `json:"individuals"`
}

type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	Task           string  `json:"task"`
	CreatedAtUTC   string  `json:"created_at_utc"`
	Topology       []int   `json:"topology"`
	Activation     string  `json:"activation"`
	ToUse          int     `json:"to_use"`
	Immutable      int     `json:"immutable"`
	Mutations      int     `json:"mutations"`
	Seed           int64   `json:"seed"`
	Workers        int     `json:"workers"`
	Selection      string  `json:"selection"`
	FitnessGoal    float64 `json:"fitness_goal"`
	GoalEnabled    bool    `json:"goal_enabled"`
	MaxGenerations int     `json:"max_generations"`
	TimeLimitMS    int64   `json:"time_limit_ms"`
	ContinuedFrom  string  `json:"continued_from,omitempty"`
	Generations    int     `json:"generations"`
	FinalBestScore float64 `json:"final_best_score"`
	StopReason     string  `json:"stop_reason"`
	ElapsedMS      int64   `json:"elapsed_ms"`
	BestGenomeID   string  `json:"best_genome_id"`
	PopulationID   string  `json:"population_id"`
}

type GenerationDiagnostics struct {
	Generation int     `json:"generation"`
	BestScore  float64 `json:"best_score"`
	MeanScore  float64 `json:"mean_score"`
	MinScore   float64 `json:"min_score"`
	MaxScore   float64 `json:"max_score"`
	StdDev     float64 `json:"std_dev"`
}
