package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"ytscrape/config"
	"ytscrape/download"
	"ytscrape/progress"
	"ytscrape/scrape"
	"ytscrape/server"
	"ytscrape/youtube"
)

// pollInterval is how often progress is redrawn.
const pollInterval = 500 * time.Millisecond

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "scrape":
		err = cmdScrape(ctx, args)
	case "download":
		err = cmdDownload(ctx, args)
	case "files":
		err = cmdFiles(args)
	case "serve":
		err = cmdServe(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytscrape - YouTube channel scraper and downloader

Usage:
  ytscrape scrape [flags] <channel>       List a channel's uploads, filtered
  ytscrape download [flags] <video-id>... Download videos as mp3 or mp4
  ytscrape files [flags]                  List downloaded files
  ytscrape serve [flags]                  Run the HTTP API
  ytscrape help                           Show this help message

Channels may be given as a URL, @handle, channel ID or legacy name.

Examples:
  ytscrape scrape @veritasium                               # Every upload
  ytscrape scrape -type shorts -time month @veritasium      # Last month's shorts
  ytscrape scrape -download -format mp4 -time week <url>    # Scrape, then download
  ytscrape download dQw4w9WgXcQ                             # One mp3
  ytscrape serve -addr :8000                                # API for the web UI

Configuration is read from ytscrape.yaml, .env and YTSCRAPE_* variables.
Set YOUTUBE_API_KEY to use the Data API; without it yt-dlp is used.

For help on specific command: ytscrape <command> -h
`)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func cmdScrape(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default: search ./ytscrape.yaml and ~/.config/ytscrape)")
	typeStr := fs.String("type", "all", "Video type: all, videos, or shorts")
	timeStr := fs.String("time", "all", "Time frame: all, week, month, or year")
	noReplays := fs.Bool("no-replays", false, "Exclude finished livestream replays")
	thenDownload := fs.Bool("download", false, "Download every matching video afterwards")
	formatStr := fs.String("format", "mp3", "Download format with -download: mp3 or mp4")
	quiet := fs.Bool("q", false, "Do not print progress")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytscrape scrape [flags] <channel>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing channel\n")
		fs.Usage()
		os.Exit(1)
	}

	vt, err := youtube.ParseVideoType(*typeStr)
	if err != nil {
		return err
	}
	tf, err := youtube.ParseTimeFrame(*timeStr)
	if err != nil {
		return err
	}
	format, err := download.ParseFormat(*formatStr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.APIKey == "" {
		if err := a.ytdlp.CheckInstalled(); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "Scraping %s...\n", argv[0])
	if _, err := a.scrape.Start(scrape.Request{
		Channel:        argv[0],
		Type:           vt,
		Frame:          tf,
		ExcludeReplays: *noReplays,
	}); err != nil {
		return err
	}
	waitScrape(ctx, a.scrape, *quiet)

	snap := a.scrape.Snapshot()
	if snap.Status == progress.StatusError {
		return errors.New(snap.Error)
	}
	res := snap.Result
	if res == nil {
		return errors.New("scrape finished without a result")
	}
	printVideos(res)

	if !*thenDownload || len(res.Videos) == 0 {
		return nil
	}
	ids := make([]string, 0, len(res.Videos))
	for _, v := range res.Videos {
		ids = append(ids, v.ID)
	}
	return runDownload(ctx, a, ids, format, *quiet)
}

func waitScrape(ctx context.Context, svc *scrape.Service, quiet bool) {
	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			if !quiet {
				fmt.Fprintln(os.Stderr)
			}
			return
		case <-ctx.Done():
			svc.Close()
			<-done
			return
		case <-ticker.C:
			if quiet {
				continue
			}
			s := svc.Snapshot()
			fmt.Fprintf(os.Stderr, "\r%5.1f%%  %d/%d processed, %d kept  %s\033[K",
				s.Percentage, s.ProcessedVideos, s.TotalVideos, s.FilteredVideos, truncate(s.CurrentVideo, 40))
		}
	}
}

func printVideos(res *progress.ScrapeResult) {
	if res.Warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", res.Warning)
	}
	if len(res.Videos) == 0 {
		fmt.Println("No videos matched.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO ID\tTITLE\tDURATION\tPUBLISHED\tTYPE")
	for _, v := range res.Videos {
		kind := "video"
		if v.IsShort {
			kind = "short"
		}
		published := ""
		if !v.Published.IsZero() {
			published = v.Published.Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			v.ID,
			truncate(v.Title, 50),
			formatDuration(v.Duration),
			published,
			kind,
		)
	}
	w.Flush()

	fmt.Fprintf(os.Stderr, "\nChannel: %s (%s) via %s\n", res.ChannelName, res.ChannelID, res.Source)
	fmt.Fprintf(os.Stderr, "Total: %d found, %d matched\n", res.TotalFound, res.FilteredCount)
}

func cmdDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file")
	formatStr := fs.String("format", "mp3", "Output format: mp3 or mp4")
	outputDir := fs.String("dir", "", "Output directory (default from config)")
	quiet := fs.Bool("q", false, "Do not print progress")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytscrape download [flags] <video-id>...\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ids := fs.Args()
	if len(ids) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing video-id\n")
		fs.Usage()
		os.Exit(1)
	}
	format, err := download.ParseFormat(*formatStr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return runDownload(ctx, a, ids, format, *quiet)
}

func runDownload(ctx context.Context, a *app, ids []string, format download.Format, quiet bool) error {
	if err := a.ytdlp.CheckInstalled(); err != nil {
		return err
	}
	if _, err := a.download.Start(ids, format); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Downloading %d videos to %s...\n", len(ids), a.download.OutputDir())

	done := make(chan struct{})
	go func() {
		a.download.Wait()
		close(done)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-done:
			break loop
		case <-ctx.Done():
			a.download.Close()
			<-done
			break loop
		case <-ticker.C:
			if quiet {
				continue
			}
			s := a.download.Snapshot()
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %5.1f%%  %s\033[K",
				s.Current, s.Total, s.Percentage, truncate(s.CurrentVideo, 50))
		}
	}

	s := a.download.Snapshot()
	if !quiet {
		fmt.Fprintln(os.Stderr)
	}
	for _, title := range s.FailedVideos {
		fmt.Fprintf(os.Stderr, "Failed: %s\n", title)
	}
	fmt.Fprintf(os.Stderr, "Download complete: %d succeeded, %d failed\n", len(s.CompletedVideos), len(s.FailedVideos))
	if len(s.FailedVideos) > 0 && len(s.CompletedVideos) == 0 {
		return errors.New("no video could be downloaded")
	}
	return nil
}

func cmdFiles(args []string) error {
	fs := flag.NewFlagSet("files", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file")
	outputDir := fs.String("dir", "", "Output directory (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytscrape files [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	svc := download.NewService(nil, nil, download.Config{OutputDir: cfg.OutputDir})
	defer svc.Close()
	files, err := svc.Files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No files in %s.\n", svc.OutputDir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIZE\tMODIFIED")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Path, formatSize(f.Size), f.Modified.Format(time.DateTime))
	}
	w.Flush()

	fmt.Fprintf(os.Stderr, "\nTotal: %d files in %s\n", len(files), svc.OutputDir())
	return nil
}

func cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file")
	addr := fs.String("addr", "", "Listen address (default from config, :8000)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytscrape serve [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ytdlp.CheckInstalled(); err != nil {
		a.log.Warn("yt-dlp unavailable; fallback listing and downloads will fail", slog.Any("error", err))
	}

	h := server.New(a.scrape, a.download, server.Config{
		AllowedOrigins: server.DefaultOrigins,
		Logger:         a.log,
	})
	return server.ListenAndServe(ctx, cfg.ListenAddr, h, a.log)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
