package main

import (
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ls4154/chunklog"
	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/chunk"
)

type config struct {
	path        string
	rounds      int
	chunksPer   int
	reportEvery int

	valueSize   int
	valueJitter int
	pieces      int

	crashPercent   int
	garbagePercent int
	garbageMax     int

	bufferSize int
	seed       int64
	syncWrites bool
	repairEnd  bool
}

type stats struct {
	committed int
	crashed   int
	garbage   int
	verifies  int
}

// oracle holds the payloads a reader must return, in order.
type oracle struct {
	records [][]byte
}

func (o *oracle) add(record []byte) {
	o.records = append(o.records, cloneBytes(record))
}

func main() {
	cfg := parseFlags()

	if err := validateConfig(cfg); err != nil {
		fatalf("%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.path), 0o755); err != nil {
		fatalf("mkdir: %v", err)
	}
	if err := os.Remove(cfg.path); err != nil && !os.IsNotExist(err) {
		fatalf("remove log: %v", err)
	}

	fmt.Printf("crashstress: log=%s rounds=%d chunks=%d value=%d+%d pieces=%d crash=%d%% garbage=%d%% buffer=%d seed=%d\n",
		cfg.path,
		cfg.rounds,
		cfg.chunksPer,
		cfg.valueSize,
		cfg.valueJitter,
		cfg.pieces,
		cfg.crashPercent,
		cfg.garbagePercent,
		cfg.bufferSize,
		cfg.seed,
	)

	start := time.Now()
	st, err := run(cfg, func(round int, st *stats) {
		fmt.Printf("crashstress: round=%d committed=%d crashed=%d garbage=%d verifies=%d\n",
			round, st.committed, st.crashed, st.garbage, st.verifies)
	})
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("crashstress: PASS elapsed=%s committed=%d crashed=%d garbage=%d\n",
		time.Since(start).Round(time.Millisecond), st.committed, st.crashed, st.garbage)
}

// run alternates writer sessions that may end in a simulated crash with
// full reads of the log checked against the oracle.
func run(cfg config, report func(round int, st *stats)) (*stats, error) {
	r := rand.New(rand.NewSource(cfg.seed))
	opt := base.DefaultOptions()
	opt.ReadBufferSize = cfg.bufferSize
	opt.SyncOnCommit = cfg.syncWrites

	o := &oracle{}
	st := &stats{}

	for round := 1; round <= cfg.rounds; round++ {
		if err := writeSession(r, cfg, opt, o, st); err != nil {
			return st, fmt.Errorf("round=%d write: %w", round, err)
		}
		if err := verify(cfg.path, opt, o); err != nil {
			return st, fmt.Errorf("round=%d verify: %w", round, err)
		}
		st.verifies++

		if report != nil && cfg.reportEvery > 0 && round%cfg.reportEvery == 0 {
			report(round, st)
		}
	}

	if cfg.repairEnd {
		if _, err := chunklog.Repair(cfg.path, opt); err != nil {
			return st, fmt.Errorf("repair: %w", err)
		}
		if err := verify(cfg.path, opt, o); err != nil {
			return st, fmt.Errorf("verify after repair: %w", err)
		}
		st.verifies++
	}
	return st, nil
}

func writeSession(r *rand.Rand, cfg config, opt *base.Options, o *oracle, st *stats) error {
	w, err := chunk.NewWriter(cfg.path, opt)
	if err != nil {
		return err
	}
	defer w.Abandon()

	for i := 0; i < cfg.chunksPer; i++ {
		before, err := fileSize(cfg.path)
		if err != nil {
			return err
		}

		value := randomValue(r, cfg.valueSize, cfg.valueJitter)
		for _, piece := range split(r, value, cfg.pieces) {
			if _, err := w.Write(piece); err != nil {
				return err
			}
		}
		if err := w.Commit(); err != nil {
			return err
		}

		if r.Intn(100) < cfg.crashPercent {
			// cut the file somewhere inside the chunk just written
			after, err := fileSize(cfg.path)
			if err != nil {
				return err
			}
			cut := before + r.Int63n(after-before)
			if err := os.Truncate(cfg.path, cut); err != nil {
				return err
			}
			st.crashed++
			return nil
		}
		o.add(value)
		st.committed++

		if r.Intn(100) < cfg.garbagePercent {
			if err := appendGarbage(r, cfg.path, 1+r.Intn(cfg.garbageMax)); err != nil {
				return err
			}
			st.garbage++
		}
	}
	return nil
}

func verify(path string, opt *base.Options, o *oracle) error {
	records, err := chunklog.ReadAll(path, opt)
	if err != nil {
		return err
	}
	if len(records) != len(o.records) {
		return fmt.Errorf("chunk count mismatch: got=%d want=%d", len(records), len(o.records))
	}
	for i := range records {
		if !bytes.Equal(records[i], o.records[i]) {
			return fmt.Errorf("chunk %d mismatch: got len=%d want len=%d", i, len(records[i]), len(o.records[i]))
		}
	}
	return nil
}

func appendGarbage(r *rand.Rand, path string, n int) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	garbage := make([]byte, n)
	r.Read(garbage)
	if _, err := f.Write(garbage); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func split(r *rand.Rand, value []byte, maxPieces int) [][]byte {
	n := 1 + r.Intn(maxPieces)
	pieces := make([][]byte, 0, n)
	for i := 0; i < n-1 && len(value) > 0; i++ {
		k := r.Intn(len(value) + 1)
		pieces = append(pieces, value[:k])
		value = value[k:]
	}
	return append(pieces, value)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func randomValue(r *rand.Rand, base, jitter int) []byte {
	n := base
	if jitter > 0 {
		n += r.Intn(jitter + 1)
	}
	v := make([]byte, n)
	r.Read(v)
	return v
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func parseFlags() config {
	cfg := config{}
	def := base.DefaultOptions()

	flag.StringVar(&cfg.path, "log", "/tmp/chunklog-crashstress/LOG", "log file path (removed at start)")
	flag.IntVar(&cfg.rounds, "rounds", 1000, "writer sessions to run")
	flag.IntVar(&cfg.chunksPer, "chunks", 8, "chunks per writer session")
	flag.IntVar(&cfg.reportEvery, "report-every", 100, "progress report interval in rounds (0 disables)")

	flag.IntVar(&cfg.valueSize, "value-size", 256, "base payload size")
	flag.IntVar(&cfg.valueJitter, "value-jitter", 4096, "random additional payload bytes")
	flag.IntVar(&cfg.pieces, "pieces", 4, "max writes per chunk")

	flag.IntVar(&cfg.crashPercent, "crash-percent", 20, "chance a session ends with a torn chunk [0..100]")
	flag.IntVar(&cfg.garbagePercent, "garbage-percent", 5, "chance of garbage after a committed chunk [0..100]")
	flag.IntVar(&cfg.garbageMax, "garbage-max", 64, "max garbage bytes per injection")

	flag.IntVar(&cfg.bufferSize, "buffer-size", def.ReadBufferSize, "reader read-ahead buffer size")
	flag.Int64Var(&cfg.seed, "seed", 20261019, "random seed")
	flag.BoolVar(&cfg.syncWrites, "sync", false, "fsync on every commit")
	flag.BoolVar(&cfg.repairEnd, "repair", true, "repair the log at the end and verify again")
	flag.Parse()

	return cfg
}

func validateConfig(cfg config) error {
	if cfg.path == "" {
		return fmt.Errorf("log path required")
	}
	if cfg.rounds <= 0 {
		return fmt.Errorf("rounds must be > 0")
	}
	if cfg.chunksPer <= 0 {
		return fmt.Errorf("chunks must be > 0")
	}
	if cfg.reportEvery < 0 {
		return fmt.Errorf("report-every must be >= 0")
	}
	if cfg.valueSize < 0 || cfg.valueJitter < 0 {
		return fmt.Errorf("value-size/value-jitter must be >= 0")
	}
	if cfg.pieces <= 0 {
		return fmt.Errorf("pieces must be > 0")
	}
	if cfg.crashPercent < 0 || cfg.crashPercent > 100 {
		return fmt.Errorf("crash-percent must be in [0,100]")
	}
	if cfg.garbagePercent < 0 || cfg.garbagePercent > 100 {
		return fmt.Errorf("garbage-percent must be in [0,100]")
	}
	if cfg.garbageMax <= 0 {
		return fmt.Errorf("garbage-max must be > 0")
	}
	if cfg.bufferSize <= 0 {
		return fmt.Errorf("buffer-size must be > 0")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "crashstress: "+format+"\n", args...)
	os.Exit(1)
}
