package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"landScope/internal/config"
	"landScope/internal/land"
	"landScope/internal/model"
	"landScope/internal/rows"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw log JSONL into event rows",
		RunE:  runDecode,
	}
	cmd.Flags().String("in", "./data/logs.jsonl", "input raw logs JSONL")
	cmd.Flags().String("out", "./data/event_rows.jsonl", "output event rows JSONL")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().String("symbol", land.DefaultTokenSymbol, "token symbol for amounts")
	cmd.Flags().Uint8("decimals", land.DefaultTokenDecimals, "token decimals for amounts")
	return cmd
}

func runDecode(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := config.LoadDecode(loadConfigFile(cmd))
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := newJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer closeOutput(outWriter, &err)

	errWriter, err := newJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer closeOutput(errWriter, &err)

	decoder, err := land.NewDecoder()
	if err != nil {
		return err
	}
	mapper := rows.NewMapper(model.TokenMeta{Symbol: cfg.Symbol, Decimals: cfg.Decimals})

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	stats, err := decodeStream(inputFile, decoder, mapper, outWriter, errWriter)
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)

	return nil
}

type decodeStats struct {
	total, decoded, skipped, failed int
}

type lineWriter interface {
	Write(value interface{}) error
}

// decodeStream maps every known log in r to a row. Unknown signatures and
// filtered events are skipped; known but malformed logs go to errs.
func decodeStream(r io.Reader, decoder *land.Decoder, mapper *rows.Mapper, out, errs lineWriter) (decodeStats, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var stats decodeStats
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.failed++
			writeDecodeError(errs, model.DecodeError{Error: err.Error()})
			continue
		}
		if record.Removed {
			stats.skipped++
			continue
		}

		decoded, err := decoder.DecodeErr(record)
		if errors.Is(err, land.ErrUnknownEvent) {
			stats.skipped++
			continue
		}
		if err != nil {
			stats.failed++
			writeDecodeError(errs, decodeErrorFromRecord(record, err))
			continue
		}

		row, ok := mapper.Map(decoded, rows.Context{})
		if !ok {
			stats.skipped++
			continue
		}
		if err := out.Write(row); err != nil {
			return stats, err
		}
		stats.decoded++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, nil
}

type jsonlWriter struct {
	file     *os.File
	writer   *bufio.Writer
	keepOpen bool
}

// newStdoutWriter writes JSON lines to stdout; Close only flushes.
func newStdoutWriter() *jsonlWriter {
	return &jsonlWriter{file: os.Stdout, writer: bufio.NewWriter(os.Stdout), keepOpen: true}
}

func newJSONLWriter(path string, appendMode bool) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// Flush pushes buffered lines to the file.
func (w *jsonlWriter) Flush() error {
	return w.writer.Flush()
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		if !w.keepOpen {
			w.file.Close()
		}
		return err
	}
	if w.keepOpen {
		return nil
	}
	return w.file.Close()
}

// closeOutput closes out and reports a failed final flush through err unless
// err already holds a failure.
func closeOutput(out *jsonlWriter, err *error) {
	if closeErr := out.Close(); closeErr != nil && *err == nil {
		*err = fmt.Errorf("close output: %w", closeErr)
	}
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}

func writeDecodeError(writer lineWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
