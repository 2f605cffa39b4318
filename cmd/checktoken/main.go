// Command checktoken verifies that the configured CMS token can write to
// the dataset by creating and deleting a probe post.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/skyroutes/flightdeck/internal/cms"
	"github.com/skyroutes/flightdeck/internal/config"
	"github.com/skyroutes/flightdeck/internal/errclass"
	"github.com/skyroutes/flightdeck/internal/logger"
	"github.com/skyroutes/flightdeck/internal/model"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to the config file")
	flag.Parse()

	godotenv.Load()

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	token := cfg.CMSToken()
	if token == "" {
		fmt.Fprintf(os.Stderr, "No token set in %s\n", cfg.CMS.TokenEnv)
		os.Exit(1)
	}

	cms.SetLogger(logger.New("warn", "console"))
	client := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Dataset, cfg.CMS.APIVersion, token)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	probe := &model.PostDraft{
		Title: "Token probe",
		Slug:  "token-probe-" + uuid.NewString()[:8],
		Body:  "Probe document created by checktoken. Safe to delete.",
	}

	post, err := client.CreatePost(ctx, probe)
	if err != nil {
		rec := errclass.Classify(err)
		fmt.Fprintf(os.Stderr, "Token cannot create documents (%s): %s\n", rec.Kind, rec.Message)
		os.Exit(1)
	}
	fmt.Println("Create OK:", post.ID)

	title := "Token probe (updated)"
	if _, err := client.UpdatePost(ctx, post.ID, &model.PostPatch{Title: &title}); err != nil {
		rec := errclass.Classify(err)
		fmt.Fprintf(os.Stderr, "Token cannot update documents (%s): %s\n", rec.Kind, rec.Message)
		fmt.Fprintln(os.Stderr, "Remove the probe manually:", post.ID)
		os.Exit(1)
	}
	fmt.Println("Update OK:", post.ID)

	if err := client.DeletePost(ctx, post.ID); err != nil {
		rec := errclass.Classify(err)
		fmt.Fprintf(os.Stderr, "Probe created but not deleted (%s): %s\n", rec.Kind, rec.Message)
		fmt.Fprintln(os.Stderr, "Remove it manually:", post.ID)
		os.Exit(1)
	}
	fmt.Println("Delete OK:", post.ID)

	fmt.Printf("Token for %s/%s has full write access\n", cfg.CMS.BaseURL, cfg.CMS.Dataset)
}
