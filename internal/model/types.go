package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NetworkRecord is a network's parameters in structured form.
type NetworkRecord struct {
	ID      int           `json:"id"`
	Layers  []int         `json:"layers"`
	Fitness float64       `json:"fitness"`
	Biases  [][]float64   `json:"biases"`
	Weights [][][]float64 `json:"weights"`
}

// PopulationSnapshot is everything needed to resume training.
type PopulationSnapshot struct {
	VersionedRecord
	ID           string          `json:"id"`
	Generation   int             `json:"generation"`
	MutateHalf   bool            `json:"mutate_half"`
	LastHit      bool            `json:"last_hit"`
	EpisodeIndex int             `json:"episode_index"`
	KillRatios   []float64       `json:"kill_ratios"`
	MissRatios   []float64       `json:"miss_ratios"`
	Networks     []NetworkRecord `json:"networks"`
}

type GenerationDiagnostics struct {
	Generation           int            `json:"generation"`
	Episode              int            `json:"episode"`
	Mode                 string         `json:"mode"`
	BestFitness          float64        `json:"best_fitness"`
	MeanFitness          float64        `json:"mean_fitness"`
	MinFitness           float64        `json:"min_fitness"`
	StdDevFitness        float64        `json:"stddev_fitness"`
	Hits                 int            `json:"hits"`
	Ticks                int            `json:"ticks"`
	Launched             int            `json:"launched"`
	TargetsHit           int            `json:"targets_hit"`
	Accuracy             float64        `json:"accuracy"`
	FingerprintDiversity int            `json:"fingerprint_diversity"`
	Reasons              map[string]int `json:"reasons,omitempty"`
	Reinitialized        bool           `json:"reinitialized,omitempty"`
	Overwritten          int            `json:"overwritten"`
	Preserved            int            `json:"preserved"`
}

// HitMissBucket counts outcomes by horizontal offset between the launch
// point and where the target started.
type HitMissBucket struct {
	XDistance int    `json:"xdist"`
	Count     int    `json:"count"`
	Result    string `json:"result"`
}

type RunSummary struct {
	VersionedRecord
	RunID          string  `json:"run_id"`
	PopulationID   string  `json:"population_id"`
	CreatedAt      string  `json:"created_at"`
	PopulationSize int     `json:"population_size"`
	Layers         []int   `json:"layers"`
	Seed           int64   `json:"seed"`
	Generations    int     `json:"generations"`
	FinalGen       int     `json:"final_generation"`
	BestFitness    float64 `json:"best_fitness"`
	Launched       int     `json:"launched"`
	TargetsHit     int     `json:"targets_hit"`
	MutateHalf     bool    `json:"mutate_half"`
}
