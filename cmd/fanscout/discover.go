package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/discovery"
	"github.com/soundreach/fanscout/internal/store"
)

var (
	discoverGenre      string
	discoverArtistType string
	discoverMaxResults int
	discoverSave       bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one discovery pass for a genre/artist-type facet",
	Long:  "Search playlists for one facet, print the scored candidates as JSON, and optionally persist them.",
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverGenre, "genre", "", "Genre to search for (required)")
	discoverCmd.Flags().StringVar(&discoverArtistType, "artist-type", "", "Artist type qualifier (required)")
	discoverCmd.Flags().IntVar(&discoverMaxResults, "max-results", 50, "Maximum candidates to return")
	discoverCmd.Flags().BoolVar(&discoverSave, "save", false, "Persist the candidates to the database")
	discoverCmd.MarkFlagRequired("genre")
	discoverCmd.MarkFlagRequired("artist-type")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
	defer cancel()

	client := newSpotifyClient(cfg)
	engine := discovery.NewEngine(client, cfg.Scoring.Weights)

	facet := candidate.Facet{Genre: discoverGenre, ArtistType: discoverArtistType}
	result, err := engine.Discover(ctx, facet, discoverMaxResults)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if discoverSave {
		db, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		saved, err := db.SaveBatch(ctx, result.Candidates, facet)
		if err != nil {
			return fmt.Errorf("save failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "saved %d candidates (%d new, %d merged)\n",
			saved.Saved, saved.Created, saved.Updated)
	}

	return printJSON(os.Stdout, result)
}

// printJSON marshals v to indented JSON and writes it to w.
func printJSON(w *os.File, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// cliTimeout bounds one-shot commands so a wedged API call cannot hang the
// terminal forever.
const cliTimeout = 5 * time.Minute
