package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Options is everything a node needs to start, resolved from the
// environment with sane local-run defaults.
type Options struct {
	NodeID     uint32 // this node's identity in HELLO/MIGRATE_RULE frames
	Seed       uint64 // evolution RNG seed
	GenomePath string // ledger file
	HMACKey    []byte // ledger authentication key
	IndexPath  string // sqlite knowledge index, empty disables it
	HTTPAddr   string // HTTP API listen address, empty disables it
	ListenPort uint16 // peer listener port, 0 disables it
}

// FromEnv loads a .env file if present, then reads KOLIBRI_* variables.
func FromEnv() (Options, error) {
	_ = godotenv.Load()

	opts := Options{
		NodeID:     1,
		Seed:       20250923,
		GenomePath: getenv("KOLIBRI_GENOME", "genome.dat"),
		HMACKey:    []byte(getenv("KOLIBRI_HMAC_KEY", "kolibri-demo-key")),
		IndexPath:  getenv("KOLIBRI_INDEX", ""),
		HTTPAddr:   getenv("KOLIBRI_HTTP_ADDR", ""),
	}

	if v := os.Getenv("KOLIBRI_NODE_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Options{}, fmt.Errorf("config: KOLIBRI_NODE_ID: %w", err)
		}
		opts.NodeID = uint32(id)
	}
	if v := os.Getenv("KOLIBRI_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Options{}, fmt.Errorf("config: KOLIBRI_SEED: %w", err)
		}
		opts.Seed = seed
	}
	if v := os.Getenv("KOLIBRI_PORT"); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return Options{}, fmt.Errorf("config: KOLIBRI_PORT: %w", err)
		}
		opts.ListenPort = uint16(port)
	}
	return opts, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
