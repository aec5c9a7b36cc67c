package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat/codec"
	"github.com/cyclopcam/groundtruth/pkg/progress"
	"github.com/cyclopcam/groundtruth/server/api"
	"github.com/cyclopcam/groundtruth/server/config"
	"github.com/cyclopcam/groundtruth/server/labeldb"
	"github.com/cyclopcam/groundtruth/server/project"
	"github.com/cyclopcam/logs"
)

func check(err error) {
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("gtlabel", "Video ground truth annotation tool")

	infoCmd := parser.NewCommand("info", "Print a summary of an annotation file")
	infoInput := infoCmd.String("i", "input", &argparse.Options{Required: true, Help: "Annotation file (.btd, .bb or .xml)"})

	convertCmd := parser.NewCommand("convert", "Convert an annotation file to another format")
	convertInput := convertCmd.String("i", "input", &argparse.Options{Required: true, Help: "Input file. Format is detected from the extension or the content"})
	convertOutput := convertCmd.String("o", "output", &argparse.Options{Required: true, Help: "Output file. Format is determined by the extension"})
	convertFrames := convertCmd.Int("", "frames", &argparse.Options{Help: "Number of frames in the video (BB output lists every frame). Defaults to the frame count stored in the input, or its last annotated frame", Default: 0})

	serveCmd := parser.NewCommand("serve", "Run the annotation HTTP server")
	configFile := serveCmd.String("c", "config", &argparse.Options{Help: "Configuration file", Default: config.DefaultFilename})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	switch {
	case infoCmd.Happened():
		info(logger, *infoInput)
	case convertCmd.Happened():
		convert(logger, *convertInput, *convertOutput, *convertFrames)
	case serveCmd.Happened():
		serve(logger, *configFile)
	}
}

func info(logger logs.Log, filename string) {
	doc := annotation.NewDocument()
	res, err := codec.ReadFile(filename, doc, progress.NewLogSink(logger, "Reading", nil))
	check(err)
	fmt.Printf("Format:       %v\n", res.Format)
	fmt.Printf("Linked video: %v\n", doc.LinkedVideo())
	fmt.Printf("Frames:       %v\n", doc.Video.FrameCount)
	if doc.Video.HasSize() {
		fmt.Printf("Frame size:   %v x %v\n", doc.Video.Width, doc.Video.Height)
	}
	fmt.Printf("Next ID:      %v\n", doc.IDs.Peek())
	if res.Skipped != 0 {
		fmt.Printf("Skipped:      %v empty objects\n", res.Skipped)
	}
	for _, c := range doc.Categories {
		fmt.Printf("  %-20v %5v tracks %7v boxes  span %v\n", c.Name, c.Len(), c.BoxCount(), c.FrameSpan())
	}
	fmt.Printf("Total:        %v tracks, %v boxes\n", doc.TrackCount(), doc.BoxCount())
}

func convert(logger logs.Log, input, output string, frames int) {
	doc := annotation.NewDocument()
	res, err := codec.ReadFile(input, doc, progress.NewLogSink(logger, "Reading", nil))
	check(err)
	logger.Infof("Read %v tracks from %v (%v)", res.Tracks, input, res.Format)
	if frames > 0 {
		doc.Video.FrameCount = frames
	}
	check(codec.WriteFile(output, doc, progress.NewLogSink(logger, "Writing", nil)))
	logger.Infof("Wrote %v", output)
}

func serve(logger logs.Log, configFile string) {
	cfg, err := config.LoadConfig(configFile)
	check(err)

	db, err := labeldb.Open(logger, cfg.DBFilename(), cfg.MaxRevisions)
	check(err)
	defer db.Close()

	proj, err := project.Open(logger, cfg, db)
	check(err)

	srv := api.NewServer(logger, cfg, proj)

	signalIn := make(chan os.Signal, 1)
	signal.Notify(signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalIn
		logger.Infof("Received OS signal '%v'. Shutting down", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warnf("HTTP server shutdown: %v", err)
		}
	}()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenAndServe(); err != nil {
		logger.Errorf("ListenAndServe returned: %v", err)
	}
	if err := proj.Close(); err != nil {
		logger.Errorf("Failed to save on shutdown: %v", err)
	}
}
