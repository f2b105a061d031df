package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"garbageapi/internal/app"
	"garbageapi/internal/config"
	"garbageapi/internal/dto"
	"garbageapi/internal/logger"
	"garbageapi/internal/service/imageio"
	"garbageapi/internal/service/storage"
)

func main() {
	cfg := config.Load()

	uploadDir := flag.String("uploads", cfg.UploadDirectory, "Directory containing uploads")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	classify := flag.Bool("classify", false, "Run detection on every untracked upload")
	flag.Parse()

	cfg.UploadDirectory = *uploadDir
	cfg.DatabasePath = *dbPath
	if cfg.DatabasePath == "" {
		log.Fatalf("A database path is required")
	}

	fmt.Printf("Registering uploads from %s in %s\n", cfg.UploadDirectory, cfg.DatabasePath)

	nop := logger.NewNop()
	db, uploadRepo, detectionRepo := app.OpenLedger(cfg, nop)
	if db == nil {
		fmt.Println("❌ Could not open upload ledger")
		return
	}
	defer db.Close()

	store := storage.NewUploadStore(cfg, nop, uploadRepo, detectionRepo)

	names, err := store.Untracked()
	if err != nil {
		fmt.Printf("❌ Failed to scan upload directory: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Println("No untracked uploads found")
		return
	}

	var run func(path string) (*dto.DetectionResult, error)
	if *classify {
		classifier, pool, device := app.NewClassifier(cfg, nop)
		if !classifier.Loaded() {
			fmt.Printf("❌ Could not load model %s\n", cfg.ModelPath)
			return
		}
		defer pool.Close()
		fmt.Printf("🤖 Classifying on %s\n", device)

		run = func(path string) (*dto.DetectionResult, error) {
			img, err := imageio.ReadFile(path)
			if err != nil {
				return nil, err
			}
			defer img.Close()
			return classifier.Classify(context.Background(), img)
		}
	}

	registered, skipped := 0, 0
	for _, name := range names {
		if !cfg.IsAllowedExtension(storage.Extension(name)) {
			skipped++
			continue
		}

		upload, err := store.Inspect(name)
		if err != nil {
			fmt.Printf("⚠️  Skipping %s: %v\n", name, err)
			skipped++
			continue
		}

		result := &dto.DetectionResult{DetectedObjects: []dto.DetectedObject{}, ClassCounts: map[string]int{}}
		if run != nil {
			if result, err = run(upload.Path); err != nil {
				fmt.Printf("⚠️  Skipping %s: %v\n", name, err)
				skipped++
				continue
			}
		}

		store.Record(upload, result)
		registered++
	}

	fmt.Printf("✅ Registered %d upload(s)\n", registered)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d file(s) (unsupported type or errors)\n", skipped)
	}

	size, err := uploadRepo.GetDirectorySize()
	if err == nil {
		count, _ := uploadRepo.GetTotalCount(&dto.UploadFilters{})
		fmt.Printf("\n📊 Ledger Statistics:\n")
		fmt.Printf("   Total uploads: %d\n", count)
		fmt.Printf("   Total size: %d bytes\n", size)
	}
}
