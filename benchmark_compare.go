// +build ignore

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	jxl "github.com/gojxl/jxl"
)

func main() {
	sizes := []int{64, 128, 256, 512}
	iterations := 10

	fmt.Println("=== JPEG XL Benchmark Comparison ===")
	fmt.Println("Go Implementation vs libjxl Reference (cjxl/djxl)")
	fmt.Println()

	tmpDir, err := os.MkdirTemp("", "jxlbench")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	fmt.Printf("%-10s | %-20s | %-20s | %-10s\n", "Size", "Go Encode", "cjxl Encode", "Ratio")
	fmt.Println("-----------+----------------------+----------------------+-----------")

	for _, size := range sizes {
		img := createTestImage(size)

		pngPath := filepath.Join(tmpDir, fmt.Sprintf("test_%d.png", size))
		jxlPathRef := filepath.Join(tmpDir, fmt.Sprintf("test_%d_ref.jxl", size))

		pngFile, _ := os.Create(pngPath)
		png.Encode(pngFile, img)
		pngFile.Close()

		goEncodeTime := benchmarkGoEncode(img, iterations)
		refEncodeTime := benchmarkRefEncode(pngPath, jxlPathRef, iterations)

		ratio := float64(goEncodeTime) / float64(refEncodeTime)
		fmt.Printf("%-10s | %-20s | %-20s | %-10.2fx\n",
			fmt.Sprintf("%dx%d", size, size),
			goEncodeTime.Round(time.Microsecond),
			refEncodeTime.Round(time.Microsecond),
			ratio)
	}

	fmt.Println()
	fmt.Printf("%-10s | %-20s | %-20s | %-10s\n", "Size", "Go Decode", "djxl Decode", "Ratio")
	fmt.Println("-----------+----------------------+----------------------+-----------")

	for _, size := range sizes {
		img := createTestImage(size)
		jxlPathGo := filepath.Join(tmpDir, fmt.Sprintf("test_%d_go.jxl", size))

		var buf bytes.Buffer
		opts := jxl.DefaultOptions()
		opts.Lossless = true
		jxl.Encode(&buf, img, opts)

		os.WriteFile(jxlPathGo, buf.Bytes(), 0644)

		goDecodeTime := benchmarkGoDecode(buf.Bytes(), iterations)

		outPng := filepath.Join(tmpDir, fmt.Sprintf("out_%d.png", size))
		refDecodeTime := benchmarkRefDecode(jxlPathGo, outPng, iterations)

		ratio := float64(goDecodeTime) / float64(refDecodeTime)
		fmt.Printf("%-10s | %-20s | %-20s | %-10.2fx\n",
			fmt.Sprintf("%dx%d", size, size),
			goDecodeTime.Round(time.Microsecond),
			refDecodeTime.Round(time.Microsecond),
			ratio)
	}

	fmt.Println()
	fmt.Println("=== Detailed Component Benchmarks (Go) ===")
	runDetailedBenchmarks()
}

func createTestImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x * 255) / size),
				G: uint8((y * 255) / size),
				B: uint8(((x + y) * 127) / size),
				A: 255,
			})
		}
	}
	return img
}

func benchmarkGoEncode(img image.Image, iterations int) time.Duration {
	opts := jxl.DefaultOptions()
	opts.Lossless = true

	var buf bytes.Buffer
	jxl.Encode(&buf, img, opts)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		buf.Reset()
		jxl.Encode(&buf, img, opts)
	}
	return time.Since(start) / time.Duration(iterations)
}

func benchmarkGoDecode(data []byte, iterations int) time.Duration {
	jxl.Decode(bytes.NewReader(data))

	start := time.Now()
	for i := 0; i < iterations; i++ {
		jxl.Decode(bytes.NewReader(data))
	}
	return time.Since(start) / time.Duration(iterations)
}

func benchmarkRefEncode(pngPath, jxlPath string, iterations int) time.Duration {
	exec.Command("cjxl", pngPath, jxlPath, "-q", "100", "--num_threads=0").Run()

	start := time.Now()
	for i := 0; i < iterations; i++ {
		cmd := exec.Command("cjxl", pngPath, jxlPath, "-q", "100", "--num_threads=0", "-q", "100")
		cmd.Run()
	}
	return time.Since(start) / time.Duration(iterations)
}

func benchmarkRefDecode(jxlPath, outPath string, iterations int) time.Duration {
	exec.Command("djxl", jxlPath, outPath, "--num_threads=0").Run()

	start := time.Now()
	for i := 0; i < iterations; i++ {
		cmd := exec.Command("djxl", jxlPath, outPath, "--num_threads=0")
		cmd.Run()
	}
	return time.Since(start) / time.Duration(iterations)
}

func runDetailedBenchmarks() {
	fmt.Println()
	cmd := exec.Command("go", "test", "-bench=.", "-benchtime=1s", "./...")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Run()
}
