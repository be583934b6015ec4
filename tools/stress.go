package tools

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-yaml"
	"github.com/refptr/refptr/std/handle"
	"github.com/refptr/refptr/std/heap"
	"github.com/refptr/refptr/std/log"
	"github.com/spf13/cobra"
)

// StressConfig drives the handle churn workload.
type StressConfig struct {
	// Number of concurrent workers.
	Workers int `json:"workers"`
	// Lifecycles each worker runs.
	Iterations int `json:"iterations"`
	// Payload body size in bytes.
	PayloadSize int `json:"payload_size"`
	// Fraction of lifecycles that go through a weak handle.
	WeakRatio float64 `json:"weak_ratio"`
	// Slots in the shared exchange table.
	ShareSlots int `json:"share_slots"`
	// Base seed for payload generation.
	Seed uint64 `json:"seed"`
	// Recycle blocks through a pool heap instead of the collector.
	UsePool bool `json:"use_pool"`
}

func DefaultStressConfig() *StressConfig {
	return &StressConfig{
		Workers:     8,
		Iterations:  10000,
		PayloadSize: 1024,
		WeakRatio:   0.25,
		ShareSlots:  64,
		Seed:        1,
	}
}

func (c *StressConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive: %d", c.Workers)
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive: %d", c.Iterations)
	}
	if c.PayloadSize <= 0 {
		return fmt.Errorf("payload_size must be positive: %d", c.PayloadSize)
	}
	if c.WeakRatio < 0 || c.WeakRatio > 1 {
		return fmt.Errorf("weak_ratio must be within [0, 1]: %f", c.WeakRatio)
	}
	if c.ShareSlots <= 0 {
		return fmt.Errorf("share_slots must be positive: %d", c.ShareSlots)
	}
	return nil
}

// stressPayload is an externally declared managed type: the body digest is
// fixed at construction and every reader re-verifies it, so any aliasing or
// premature-reclaim bug shows up as a checksum mismatch.
type stressPayload struct {
	Seq  uint64
	Body []byte
	Sum  uint64
}

var stressDecl = handle.Declare[stressPayload]()

type Stress struct {
	config *StressConfig
	heap   *heap.Counting

	mu    sync.Mutex
	table []handle.Strong[stressPayload]

	errs chan error
}

func CmdStress() *cobra.Command {
	s := Stress{}

	cmd := &cobra.Command{
		GroupID: "tools",
		Use:     "stress CONFIG-FILE",
		Short:   "Run a handle lifecycle stress workload",
		Args:    cobra.ExactArgs(1),
		Example: `  refptr stress stress.yml`,
		Run:     s.run,
	}

	return cmd
}

func (s *Stress) String() string {
	return "stress"
}

func (s *Stress) run(_ *cobra.Command, args []string) {
	f, err := os.Open(args[0])
	if err != nil {
		log.Fatal(s, "Unable to read configuration file", "err", err)
		return
	}
	defer f.Close()

	config := DefaultStressConfig()
	dec := yaml.NewDecoder(f, yaml.Strict())
	if err := dec.Decode(&config); err != nil {
		log.Fatal(s, "Unable to parse configuration file", "err", err)
		return
	}
	if err := config.Validate(); err != nil {
		log.Fatal(s, "Invalid configuration", "err", err)
		return
	}

	if err := s.Execute(config); err != nil {
		log.Fatal(s, "Stress run failed", "err", err)
		return
	}
}

// Execute runs the workload to completion and verifies that the heap ledger
// is balanced afterwards.
func (s *Stress) Execute(config *StressConfig) error {
	s.config = config
	s.heap = &heap.Counting{}
	if config.UsePool {
		s.heap.Inner = heap.NewPool()
	}
	s.table = make([]handle.Strong[stressPayload], config.ShareSlots)
	s.errs = make(chan error, config.Workers)

	log.Info(s, "Starting stress workload",
		"workers", config.Workers,
		"iterations", config.Iterations,
		"payload-size", config.PayloadSize)

	var wg sync.WaitGroup
	wg.Add(config.Workers)
	for i := 0; i < config.Workers; i++ {
		go func(id int) {
			defer wg.Done()
			if err := s.worker(id); err != nil {
				s.errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(s.errs)
	for err := range s.errs {
		return err
	}

	s.drainTable()
	if live := s.heap.Live(); live != 0 {
		return fmt.Errorf("heap ledger unbalanced: %d regions leaked", live)
	}

	log.Info(s, "Stress workload finished",
		"grabs", s.heap.Grabs(),
		"reclaims", s.heap.Reclaims())
	fmt.Printf("%d lifecycles, %d allocations, 0 leaked\n",
		config.Workers*config.Iterations, s.heap.Grabs())
	return nil
}

func (s *Stress) worker(id int) error {
	rng := rand.New(rand.NewSource(int64(s.config.Seed) + int64(id)))

	for i := 0; i < s.config.Iterations; i++ {
		ptr, err := s.construct(rng, uint64(id)<<32|uint64(i))
		if err != nil {
			return err
		}

		if rng.Float64() < s.config.WeakRatio {
			weak := ptr.Downgrade()
			ptr.Release()
			ptr = weak.Lock()
			weak.Release()
			if ptr.Empty() {
				// Nobody else held it; that lifecycle is already over.
				continue
			}
		}

		if err := verify(ptr.Get()); err != nil {
			ptr.Release()
			return err
		}

		// Swap into the exchange table and retire whatever was there, so
		// handles constantly cross worker boundaries.
		slot := rng.Intn(s.config.ShareSlots)
		s.mu.Lock()
		prev := s.table[slot].Move()
		s.table[slot] = ptr.Move()
		s.mu.Unlock()

		if !prev.Empty() {
			if err := verify(prev.Get()); err != nil {
				prev.Release()
				return err
			}
			prev.Release()
		}
	}
	return nil
}

func (s *Stress) construct(rng *rand.Rand, seq uint64) (handle.Strong[stressPayload], error) {
	return stressDecl.NewIn(s.heap, func(p *stressPayload) error {
		p.Seq = seq
		p.Body = make([]byte, s.config.PayloadSize)
		rng.Read(p.Body)
		p.Sum = xxhash.Sum64(p.Body)
		return nil
	})
}

func (s *Stress) drainTable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.table {
		if !s.table[i].Empty() {
			s.table[i].Release()
		}
	}
}

func verify(p *stressPayload) error {
	if sum := xxhash.Sum64(p.Body); sum != p.Sum {
		return fmt.Errorf("payload %d corrupted: digest %x, expected %x", p.Seq, sum, p.Sum)
	}
	return nil
}
