package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ewdc/engine/internal/config"
	"github.com/ewdc/engine/internal/data"
	"github.com/ewdc/engine/internal/engine"
	gonet "github.com/ewdc/engine/internal/net"
	"github.com/ewdc/engine/internal/persist"
	"github.com/ewdc/engine/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            EWDC Engine  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       協作繪圖文件伺服器 · Go             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	// Use rune count for CJK width calculation (each CJK char = 2 columns)
	displayWidth := 0
	for _, r := range title {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	lineLen := 46 - displayWidth - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	displayWidth := 0
	for _, r := range label {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	dotsLen := 42 - displayWidth - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	docFlag := flag.String("doc", "", "document id to open (uuid); empty creates a new document")
	flag.Parse()

	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("EWDC_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 3. Connect to PostgreSQL and run migrations (optional)
	var (
		db      *persist.DB
		docRepo *persist.DocumentRepo
		journal *persist.JournalRepo
	)
	if cfg.Database.Enabled {
		printSection("資料庫")
		db, err = persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")

		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("資料庫遷移完成")
		fmt.Println()

		docRepo = persist.NewDocumentRepo(db)
		journal = persist.NewJournalRepo(db)
	}

	// 4. Load asset tables
	printSection("資料載入")

	presets := loadPresets(cfg.Presets.Dir)
	printStat("樣式預設", presets.Count())

	fonts := loadFonts(cfg.Presets.Dir)
	printStat("字型定義", fonts.Count())

	// 5. Create the document engine
	doc := engine.New(log, engine.Options{
		MergeWindow:          cfg.History.MergeWindow,
		MaxHistoryEntries:    cfg.History.MaxEntries,
		EventQueueSize:       cfg.Engine.EventQueueSize,
		MaxCommandsPerBuffer: cfg.Engine.MaxCommandsPerBuffer,
	})

	// 5a. Resolve the document: load from DB or start fresh.
	docID, err := openDocument(ctx, doc, docRepo, journal, *docFlag, log)
	if err != nil {
		return err
	}
	printStat("文件實體", doc.Store().EntityCount())

	// 5b. Initialize Lua scripting engine
	var luaEngine *scripting.Engine
	if cfg.Scripting.Enabled {
		luaEngine, err = scripting.NewEngine(cfg.Scripting.Dir, doc, presets, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer luaEngine.Close()
		printOK("Lua 腳本載入完成")
	}
	fmt.Println()

	// 6. Create the document hub and journal hook
	var macros gonet.MacroRunner
	if luaEngine != nil {
		macros = luaEngine
	}
	hub := gonet.NewHub(doc, macros, log)
	if journal != nil {
		hub.OnApplied = func(buffer []byte) {
			buf := make([]byte, len(buffer))
			copy(buf, buffer)
			jctx, jcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer jcancel()
			if _, err := journal.Append(jctx, docID, [][]byte{buf}); err != nil {
				log.Error("指令日誌寫入失敗", zap.Error(err))
			}
		}
	}
	go hub.Run()

	// 7. Start the WebSocket server
	netServer := gonet.NewServer(cfg.Network, hub, log)
	serveErr := make(chan error, 1)
	go func() { serveErr <- netServer.ListenAndServe() }()

	// 8. Main loop: autosave and shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("監聽位址 %s", netServer.Addr()))
	printReady(fmt.Sprintf("文件 %s", docID))
	fmt.Println()

	var autosaveCh <-chan time.Time
	if cfg.Autosave.Enabled && docRepo != nil {
		ticker := time.NewTicker(cfg.Autosave.Interval)
		defer ticker.Stop()
		autosaveCh = ticker.C
	}

	for {
		select {
		case <-autosaveCh:
			saveRevision(doc, docRepo, docID, log)
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("net server: %w", err)
			}
			return nil
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
			netServer.Shutdown(sctx)
			scancel()
			hub.Stop()
			saveRevision(doc, docRepo, docID, log)
			log.Info("伺服器已停止")
			return nil
		}
	}
}

// loadPresets loads the style preset table; a missing file is an empty
// table, not an error.
func loadPresets(dir string) *data.PresetTable {
	t, err := data.LoadPresetTable(filepath.Join(dir, "style_presets.yaml"))
	if err != nil {
		return &data.PresetTable{}
	}
	return t
}

func loadFonts(dir string) *data.FontTable {
	t, err := data.LoadFontTable(filepath.Join(dir, "font_list.yaml"))
	if err != nil {
		return &data.FontTable{}
	}
	return t
}

// openDocument resolves the document to serve: a fresh one without a
// database, otherwise the requested (or a newly created) stored document
// with its latest revision and journal tail replayed.
func openDocument(ctx context.Context, doc *engine.Engine, repo *persist.DocumentRepo, journal *persist.JournalRepo, flagID string, log *zap.Logger) (uuid.UUID, error) {
	if repo == nil {
		return uuid.New(), nil
	}

	var docID uuid.UUID
	if flagID == "" {
		id, err := repo.Create(ctx, "untitled")
		if err != nil {
			return uuid.Nil, err
		}
		printOK("已建立新文件")
		return id, nil
	}

	docID, err := uuid.Parse(flagID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse document id: %w", err)
	}
	if _, err := repo.Get(ctx, docID); err != nil {
		return uuid.Nil, fmt.Errorf("open document: %w", err)
	}

	rev, err := repo.LoadLatestRevision(ctx, docID)
	switch err {
	case nil:
		if code := doc.LoadSnapshot(rev.Snapshot); code.Err() != nil {
			return uuid.Nil, fmt.Errorf("load snapshot: %w", code.Err())
		}
		printOK(fmt.Sprintf("已載入修訂版本 %d", rev.Revision))
	case persist.ErrNotFound:
		// Brand new document, nothing stored yet.
	default:
		return uuid.Nil, fmt.Errorf("load revision: %w", err)
	}

	// Replay the journal tail on top of the revision.
	entries, err := journal.LoadSince(ctx, docID, 0)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load journal: %w", err)
	}
	for _, e := range entries {
		if code := doc.ApplyCommandBuffer(e.Buffer); code.Err() != nil {
			log.Warn("日誌重播失敗，忽略其餘項目",
				zap.Int32("seq", e.Seq), zap.Error(code.Err()))
			break
		}
	}
	if len(entries) > 0 {
		printOK(fmt.Sprintf("已重播 %d 筆指令日誌", len(entries)))
	}
	return docID, nil
}

// saveRevision snapshots the document into a new stored revision.
func saveRevision(doc *engine.Engine, repo *persist.DocumentRepo, docID uuid.UUID, log *zap.Logger) {
	if repo == nil {
		return
	}
	snap := doc.SaveSnapshot()
	d := doc.DocumentDigest()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	rev, err := repo.SaveRevision(ctx, docID, snap, uint64(d.Lo), uint64(d.Hi))
	if err != nil {
		log.Error("文件存檔失敗", zap.Error(err))
		return
	}
	log.Info("文件已存檔",
		zap.Int32("revision", rev),
		zap.Int("bytes", len(snap)),
		zap.String("digest", fmt.Sprintf("%016x", d.U64())))
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
