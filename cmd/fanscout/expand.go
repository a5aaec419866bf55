package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/expansion"
	"github.com/soundreach/fanscout/internal/store"
)

var (
	expandSeedLimit int
	expandPlaylists int
	expandTracks    int
	expandMaxNew    int
	expandSave      bool
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Run one playlist-graph expansion pass",
	Long:  "Crawl the playlists of stored candidates for second-degree candidates, print them as JSON, and optionally persist them with provenance.",
	RunE:  runExpand,
}

func init() {
	expandCmd.Flags().IntVar(&expandSeedLimit, "seeds", 50, "Maximum seed candidates to crawl")
	expandCmd.Flags().IntVar(&expandPlaylists, "playlists-per-seed", 5, "Playlists fetched per seed")
	expandCmd.Flags().IntVar(&expandTracks, "tracks-per-playlist", 100, "Tracks fetched per playlist")
	expandCmd.Flags().IntVar(&expandMaxNew, "max-new", 200, "Stop after this many new candidates")
	expandCmd.Flags().BoolVar(&expandSave, "save", false, "Persist the candidates and provenance to the database")
}

func runExpand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
	defer cancel()

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	client := newSpotifyClient(cfg)
	engine := expansion.NewEngine(client, db, cfg.Scoring.Weights)

	result, err := engine.Expand(ctx, expansion.Options{
		SeedLimit:             expandSeedLimit,
		PerSeedPlaylistLimit:  expandPlaylists,
		PerPlaylistTrackLimit: expandTracks,
		MaxNewCandidates:      expandMaxNew,
	})
	if err != nil {
		return fmt.Errorf("expansion failed: %w", err)
	}

	if expandSave {
		saved, err := db.SaveBatch(ctx, result.Candidates, expansionFacet)
		if err != nil {
			return fmt.Errorf("save failed: %w", err)
		}
		for userID, refs := range result.Edges {
			key := candidate.NaturalKey{Platform: candidate.PlatformSpotify, UserID: userID}
			if err := db.AppendSources(ctx, key, refs); err != nil {
				fmt.Fprintf(os.Stderr, "warning: provenance for %s not saved: %v\n", userID, err)
			}
		}
		fmt.Fprintf(os.Stderr, "saved %d candidates (%d new, %d merged)\n",
			saved.Saved, saved.Created, saved.Updated)
	}

	return printJSON(os.Stdout, result)
}
