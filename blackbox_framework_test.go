package qrfinder_test

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ericlevine/qrfinder"
	"github.com/ericlevine/qrfinder/binarizer"
	"github.com/ericlevine/qrfinder/qrcode/detector"
)

// blackboxTestDir is the path to the blackbox test images.
const blackboxTestDir = "testdata/blackbox"

// blackboxTestRotation defines expected pass/fail thresholds for one rotation angle.
type blackboxTestRotation struct {
	rotation             float64
	mustPassCount        int
	tryHarderCount       int
	maxMisreads          int
	maxTryHarderMisreads int
}

// blackboxTestCase defines a complete blackbox test for one directory.
type blackboxTestCase struct {
	dir       string  // subdirectory name under blackboxTestDir, e.g. "finder-1"
	tolerance float64 // maximum distance in pixels from each expected center
	tests     []blackboxTestRotation
	tuning    *detector.Tuning // optional tuning overrides
}

// rotateImage rotates an image clockwise by the given degrees (must be a
// multiple of 90).
func rotateImage(img image.Image, degrees float64) image.Image {
	switch int(degrees) % 360 {
	case 0:
		return img
	case 90:
		return rotate90(img)
	case 180:
		return rotate180(img)
	case 270:
		return rotate270(img)
	default:
		panic(fmt.Sprintf("unsupported rotation: %v degrees", degrees))
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(h-1-y, x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(w-1-x, h-1-y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(y, w-1-x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// rotatePoint maps a point of a w x h image the way rotateImage maps pixels.
func rotatePoint(p qrfinder.ResultPoint, w, h int, degrees float64) qrfinder.ResultPoint {
	switch int(degrees) % 360 {
	case 90:
		return qrfinder.ResultPoint{X: float64(h) - p.Y, Y: p.X}
	case 180:
		return qrfinder.ResultPoint{X: float64(w) - p.X, Y: float64(h) - p.Y}
	case 270:
		return qrfinder.ResultPoint{X: p.Y, Y: float64(w) - p.X}
	default:
		return p
	}
}

// loadExpectedCenters loads the bottom-left, top-left and top-right centers
// from a .txt file holding one "x,y" pair per line.
func loadExpectedCenters(basePath string) ([3]qrfinder.ResultPoint, error) {
	var centers [3]qrfinder.ResultPoint
	f, err := os.Open(basePath + ".txt")
	if err != nil {
		return centers, fmt.Errorf("no expected centers file found for %s: %w", basePath, err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if n == len(centers) {
			return centers, fmt.Errorf("%s.txt: more than three centers", basePath)
		}
		xs, ys, ok := strings.Cut(line, ",")
		if !ok {
			return centers, fmt.Errorf("%s.txt: malformed line %q", basePath, line)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err := errors.Join(errX, errY); err != nil {
			return centers, fmt.Errorf("%s.txt: %w", basePath, err)
		}
		centers[n] = qrfinder.ResultPoint{X: x, Y: y}
		n++
	}
	if err := scanner.Err(); err != nil {
		return centers, err
	}
	if n != len(centers) {
		return centers, fmt.Errorf("%s.txt: expected three centers, got %d", basePath, n)
	}
	return centers, nil
}

// imageExtensions are the file extensions to look for in test directories.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// findImageFiles finds all image files in a directory.
func findImageFiles(dir string) ([]string, error) {
	var files []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, ie := range imageExtensions {
			if ext == ie {
				files = append(files, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	return files, nil
}

type imageTestData struct {
	path    string
	centers [3]qrfinder.ResultPoint
}

// runBlackBoxTest runs a complete blackbox test for a given test case.
func runBlackBoxTest(t *testing.T, tc blackboxTestCase) {
	t.Helper()

	dir := filepath.Join(blackboxTestDir, tc.dir)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skipf("test directory %s not found, skipping", dir)
		return
	}

	imageFiles, err := findImageFiles(dir)
	if err != nil {
		t.Fatalf("failed to find image files in %s: %v", dir, err)
	}
	if len(imageFiles) == 0 {
		t.Fatalf("no image files found in %s", dir)
	}

	var testData []imageTestData
	for _, imgPath := range imageFiles {
		ext := filepath.Ext(imgPath)
		basePath := imgPath[:len(imgPath)-len(ext)]

		centers, err := loadExpectedCenters(basePath)
		if err != nil {
			t.Logf("skipping %s: %v", filepath.Base(imgPath), err)
			continue
		}
		testData = append(testData, imageTestData{path: imgPath, centers: centers})
	}

	if len(testData) == 0 {
		t.Fatalf("no valid test images found in %s", dir)
	}

	testCount := len(tc.tests)
	passedCounts := make([]int, testCount)
	misreadCounts := make([]int, testCount)
	tryHarderCounts := make([]int, testCount)
	tryHarderMisreadCounts := make([]int, testCount)

	for _, td := range testData {
		f, err := os.Open(td.path)
		if err != nil {
			t.Fatalf("failed to open %s: %v", td.path, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			t.Logf("failed to decode image %s: %v", filepath.Base(td.path), err)
			continue
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()

		for i, rot := range tc.tests {
			rotated := rotateImage(img, rot.rotation)
			var want [3]qrfinder.ResultPoint
			for k, c := range td.centers {
				want[k] = rotatePoint(c, w, h, rot.rotation)
			}

			info := tryFind(rotated, false, tc.tuning)
			switch classifyResult(info, want, tc.tolerance) {
			case resultPassed:
				passedCounts[i]++
			case resultMisread:
				misreadCounts[i]++
				t.Logf("  MISREAD rot=%.0f file=%s got=%v expected=%v",
					rot.rotation, filepath.Base(td.path), info.Points(), want)
			case resultNotFound:
				t.Logf("  NOTFOUND rot=%.0f file=%s", rot.rotation, filepath.Base(td.path))
			}

			info2 := tryFind(rotated, true, tc.tuning)
			switch classifyResult(info2, want, tc.tolerance) {
			case resultPassed:
				tryHarderCounts[i]++
			case resultMisread:
				tryHarderMisreadCounts[i]++
				t.Logf("  MISREAD(TH) rot=%.0f file=%s got=%v expected=%v",
					rot.rotation, filepath.Base(td.path), info2.Points(), want)
			case resultNotFound:
				t.Logf("  NOTFOUND(TH) rot=%.0f file=%s", rot.rotation, filepath.Base(td.path))
			}
		}
	}

	totalFound := 0
	totalMustPass := 0
	for i, rot := range tc.tests {
		t.Logf("Rotation %3.0f°: %d/%d passed (need %d), %d misread (max %d) | TryHarder: %d/%d passed (need %d), %d misread (max %d)",
			rot.rotation,
			passedCounts[i], len(testData), rot.mustPassCount, misreadCounts[i], rot.maxMisreads,
			tryHarderCounts[i], len(testData), rot.tryHarderCount, tryHarderMisreadCounts[i], rot.maxTryHarderMisreads)
		totalFound += passedCounts[i] + tryHarderCounts[i]
		totalMustPass += rot.mustPassCount + rot.tryHarderCount
	}
	if totalFound > totalMustPass {
		t.Logf("+++ Test too lax by %d images", totalFound-totalMustPass)
	}

	for i, rot := range tc.tests {
		if passedCounts[i] < rot.mustPassCount {
			t.Errorf("Rotation %.0f°: Too many images failed: got %d, need %d",
				rot.rotation, passedCounts[i], rot.mustPassCount)
		}
		if tryHarderCounts[i] < rot.tryHarderCount {
			t.Errorf("Rotation %.0f° (TryHarder): Too many images failed: got %d, need %d",
				rot.rotation, tryHarderCounts[i], rot.tryHarderCount)
		}
		if misreadCounts[i] > rot.maxMisreads {
			t.Errorf("Rotation %.0f°: Too many misreads: got %d, max %d",
				rot.rotation, misreadCounts[i], rot.maxMisreads)
		}
		if tryHarderMisreadCounts[i] > rot.maxTryHarderMisreads {
			t.Errorf("Rotation %.0f° (TryHarder): Too many misreads: got %d, max %d",
				rot.rotation, tryHarderMisreadCounts[i], rot.maxTryHarderMisreads)
		}
	}
}

type findOutcome int

const (
	resultNotFound findOutcome = iota
	resultPassed
	resultMisread
)

// classifyResult reports whether every center was found in the expected role
// within tolerance pixels.
func classifyResult(info *detector.FinderPatternInfo, want [3]qrfinder.ResultPoint, tolerance float64) findOutcome {
	if info == nil {
		return resultNotFound
	}
	for i, got := range info.Points() {
		if qrfinder.Distance(got, want[i]) > tolerance {
			return resultMisread
		}
	}
	return resultPassed
}

// tryFind binarizes the image with the hybrid binarizer and searches it.
func tryFind(img image.Image, tryHarder bool, tuning *detector.Tuning) *detector.FinderPatternInfo {
	source := qrfinder.NewImageLuminanceSource(img)
	bitmap := qrfinder.NewBinaryBitmap(binarizer.NewHybrid(source))
	matrix, err := bitmap.BlackMatrix()
	if err != nil {
		return nil
	}
	info, err := detector.FindFinderPatterns(matrix, &detector.Options{
		TryHarder: tryHarder,
		Tuning:    tuning,
	})
	if err != nil {
		return nil
	}
	return info
}

// Helper to create test rotation with just pass counts (maxMisreads=0)
func rot(degrees float64, mustPass, tryHarderPass int) blackboxTestRotation {
	return blackboxTestRotation{
		rotation:       degrees,
		mustPassCount:  mustPass,
		tryHarderCount: tryHarderPass,
	}
}

// Helper to create test rotation with misread allowances
func rotM(degrees float64, mustPass, tryHarderPass, maxMisreads, maxTryHarderMisreads int) blackboxTestRotation {
	return blackboxTestRotation{
		rotation:             degrees,
		mustPassCount:        mustPass,
		tryHarderCount:       tryHarderPass,
		maxMisreads:          maxMisreads,
		maxTryHarderMisreads: maxTryHarderMisreads,
	}
}
