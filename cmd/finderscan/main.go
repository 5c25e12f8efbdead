package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ericlevine/qrfinder"
	"github.com/ericlevine/qrfinder/binarizer"
	"github.com/ericlevine/qrfinder/qrcode/detector"
)

type point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ModuleSize float64 `json:"moduleSize"`
	Count      int     `json:"count"`
}

type scanResult struct {
	File       string  `json:"file"`
	BottomLeft point   `json:"bottomLeft"`
	TopLeft    point   `json:"topLeft"`
	TopRight   point   `json:"topRight"`
	ModuleSize float64 `json:"moduleSize"`
}

func newPoint(fp detector.FinderPattern) point {
	return point{X: fp.X, Y: fp.Y, ModuleSize: fp.EstimatedModuleSize, Count: fp.Count}
}

func main() {
	tryHarder := flag.Bool("try-harder", false, "scan every row and disable early termination")
	tuningPath := flag.String("tuning", "", "JSON file overriding detector tuning")
	asJSON := flag.Bool("json", false, "print one JSON object per image")
	verbose := flag.Bool("v", false, "log every confirmed candidate center")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: finderscan [flags] <image-file> [image-file...]\n\n")
		fmt.Fprintf(os.Stderr, "Locate the three QR finder patterns in image files (PNG, JPEG, GIF, BMP, TIFF, WebP).\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(0)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var tuning *detector.Tuning
	if *tuningPath != "" {
		var err error
		tuning, err = detector.LoadTuning(*tuningPath)
		if err != nil {
			log.Fatalf("tuning: %v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	exitCode := 0
	for _, path := range flag.Args() {
		opts := &detector.Options{TryHarder: *tryHarder, Tuning: tuning}
		if *verbose {
			opts.ResultPointCallback = func(p qrfinder.ResultPoint) {
				log.Printf("%s: candidate (%.1f, %.1f)", path, p.X, p.Y)
			}
		}
		info, err := scanFile(path, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: error: %v\n", path, err)
			exitCode = 1
			continue
		}
		res := scanResult{
			File:       path,
			BottomLeft: newPoint(info.BottomLeft),
			TopLeft:    newPoint(info.TopLeft),
			TopRight:   newPoint(info.TopRight),
			ModuleSize: info.ModuleSize,
		}
		if *asJSON {
			if err := enc.Encode(res); err != nil {
				log.Fatalf("encode: %v", err)
			}
			continue
		}
		if flag.NArg() > 1 {
			fmt.Printf("%s: ", path)
		}
		fmt.Printf("bottomLeft=(%.1f,%.1f) topLeft=(%.1f,%.1f) topRight=(%.1f,%.1f) moduleSize=%.2f\n",
			res.BottomLeft.X, res.BottomLeft.Y,
			res.TopLeft.X, res.TopLeft.Y,
			res.TopRight.X, res.TopRight.Y,
			res.ModuleSize)
	}
	os.Exit(exitCode)
}

func scanFile(path string, opts *detector.Options) (*detector.FinderPatternInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	source := qrfinder.NewImageLuminanceSource(img)
	matrix, err := qrfinder.NewBinaryBitmap(binarizer.NewHybrid(source)).BlackMatrix()
	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}
	return detector.FindFinderPatterns(matrix, opts)
}
