package database

import "time"

// Sample is one stored embedding under a label
type Sample struct {
	Label     string
	ID        string
	Embedding []float32
}

// Meta is the index-wide metadata persisted in MetaFile
type Meta struct {
	Version   int       `yaml:"version"`
	Dimension int       `yaml:"dimension"`
	CreatedAt time.Time `yaml:"created_at"`
}

const currentMetaVersion = 1
