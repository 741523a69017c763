package converter

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/inkbench/internal/tools"
)

// PrintIntent rewrites a candidate PDF into DeviceCMYK with Ghostscript's
// pdfwrite device
type PrintIntent struct {
    binary     string
    iccProfile string
    maxWorkers int
    semaphore  chan struct{}
}

// NewPrintIntent creates a converter that runs at most maxWorkers conversions at once.
// iccProfile is optional; when set it becomes the output intent profile.
func NewPrintIntent(binary, iccProfile string, maxWorkers int) *PrintIntent {
    if binary == "" {
        binary = "gs"
    }
    if maxWorkers <= 0 {
        maxWorkers = 1
    }
    return &PrintIntent{
        binary:     binary,
        iccProfile: iccProfile,
        maxWorkers: maxWorkers,
        semaphore:  make(chan struct{}, maxWorkers),
    }
}

// Available verifies Ghostscript is installed
func (p *PrintIntent) Available(ctx context.Context) error {
    if err := tools.Available(p.binary); err != nil {
        return err
    }
    if p.iccProfile != "" {
        if _, err := os.Stat(p.iccProfile); err != nil {
            return fmt.Errorf("output intent profile: %w", err)
        }
    }
    return nil
}

// Convert writes the print-intent version of input to output. The result is
// written to a temporary sibling first so a failed run never leaves a
// partial file at output.
func (p *PrintIntent) Convert(ctx context.Context, input, output string) error {
    startTime := time.Now()

    select {
    case p.semaphore <- struct{}{}:
    case <-ctx.Done():
        return ctx.Err()
    }
    defer func() { <-p.semaphore }()

    if err := validateInput(input); err != nil {
        return fmt.Errorf("input validation failed: %w", err)
    }

    outputDir := filepath.Dir(output)
    if err := os.MkdirAll(outputDir, 0755); err != nil {
        return fmt.Errorf("failed to create output directory: %w", err)
    }
    tmp := filepath.Join(outputDir, fmt.Sprintf(".cmyk-%s.pdf", uuid.New().String()))
    defer os.Remove(tmp)

    args := []string{
        "-q", "-dSAFER", "-dBATCH", "-dNOPAUSE",
        "-sDEVICE=pdfwrite",
        "-sColorConversionStrategy=CMYK",
        "-sProcessColorModel=DeviceCMYK",
        "-dOverrideICC=true",
    }
    if p.iccProfile != "" {
        args = append(args, "-sOutputICCProfile="+p.iccProfile)
    }
    args = append(args, "-o", tmp, input)

    log.Info().Str("input", input).Str("output", output).Msg("starting print-intent conversion")
    if _, err := tools.Run(ctx, p.binary, args...); err != nil {
        return err
    }
    if err := validateInput(tmp); err != nil {
        return fmt.Errorf("output file not created: %w", err)
    }
    if err := os.Rename(tmp, output); err != nil {
        return fmt.Errorf("failed to move output: %w", err)
    }

    log.Info().Str("output", output).Dur("duration", time.Since(startTime)).Msg("conversion successful")
    return nil
}

// validateInput checks if the file is a readable, non-empty regular file
func validateInput(filePath string) error {
    info, err := os.Stat(filePath)
    if err != nil {
        return fmt.Errorf("file not found: %w", err)
    }

    if info.IsDir() {
        return fmt.Errorf("path is a directory, not a file")
    }

    if info.Size() == 0 {
        return fmt.Errorf("file is empty")
    }

    file, err := os.Open(filePath)
    if err != nil {
        return fmt.Errorf("file not readable: %w", err)
    }
    file.Close()

    return nil
}
