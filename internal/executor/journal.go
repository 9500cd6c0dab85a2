package executor

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// csvHeader is written once per file, per spec §6/§9: append-only
// journals are never atomically rewritten, only appended to, with the
// header guarded by an existence check at open time.
var csvHeader = []string{"timestamp", "cycle", "profit_pct", "initial_asset", "initial_amount", "final_asset", "final_amount"}

// CSVJournal appends TradeRecords to output/trades/YYYY-MM-DD/HH.csv,
// rolling to a new file each hour (pkg/utils day/hour helpers pattern).
type CSVJournal struct {
	baseDir string

	mu      sync.Mutex
	curPath string
	file    *os.File
	writer  *csv.Writer
}

// NewCSVJournal opens a journal rooted at baseDir (typically
// "output/trades").
func NewCSVJournal(baseDir string) *CSVJournal {
	return &CSVJournal{baseDir: baseDir}
}

// Append writes one trade record, rolling to the hour-sharded file
// rec.Timestamp belongs to and writing the header if the file is new.
func (j *CSVJournal) Append(rec TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := j.pathFor(rec)
	if path != j.curPath {
		if err := j.rollTo(path); err != nil {
			return err
		}
	}

	row := []string{
		rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		rec.Cycle,
		rec.ProfitPct.String(),
		rec.InitialAsset,
		rec.InitialAmount.String(),
		rec.FinalAsset,
		rec.FinalAmount.String(),
	}
	if err := j.writer.Write(row); err != nil {
		return err
	}
	j.writer.Flush()
	return j.writer.Error()
}

func (j *CSVJournal) pathFor(rec TradeRecord) string {
	day := rec.Timestamp.Format("2006-01-02")
	hour := rec.Timestamp.Format("15")
	return filepath.Join(j.baseDir, day, hour+".csv")
}

func (j *CSVJournal) rollTo(path string) error {
	if j.file != nil {
		j.writer.Flush()
		j.file.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("executor: create trade journal dir: %w", err)
	}

	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("executor: open trade journal: %w", err)
	}

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return fmt.Errorf("executor: write trade journal header: %w", err)
		}
		w.Flush()
	}

	j.curPath = path
	j.file = f
	j.writer = w
	return nil
}

// Close flushes and closes the currently open file, if any.
func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	j.writer.Flush()
	err := j.file.Close()
	j.file = nil
	j.writer = nil
	return err
}
