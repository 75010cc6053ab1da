package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dyluth/tremor/internal/hw/sim"
	"github.com/dyluth/tremor/internal/printer"
	"github.com/dyluth/tremor/internal/shake"
	"github.com/spf13/cobra"
)

var (
	scoreStrategy string
	scoreWeights  string
	scoreSamples  int
	scoreSeed     int64
	scoreStdin    bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Run a shake scorer over accelerometer samples",
	Long: `Score accelerometer samples with the bucket or frequency strategy.

Samples come from the simulated accelerometer (seeded noise with shake bursts)
or, with --stdin, from "x y z" or "x,y,z" lines in milli-g.

Examples:
  tremor score --strategy bucket --samples 100
  printf '0 0 1000\n900 0 1000\n' | tremor score --stdin`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreStrategy, "strategy", shake.StrategyFrequency, "Scoring strategy: bucket or frequency")
	scoreCmd.Flags().StringVar(&scoreWeights, "weights", "", "Frequency weights: balanced or magnitude")
	scoreCmd.Flags().IntVarP(&scoreSamples, "samples", "n", 50, "Number of simulated samples")
	scoreCmd.Flags().Int64Var(&scoreSeed, "seed", 1, "Simulated accelerometer seed")
	scoreCmd.Flags().BoolVar(&scoreStdin, "stdin", false, "Read samples from stdin instead of simulating")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	scorer, err := shake.New(shake.Config{Strategy: scoreStrategy, Weights: scoreWeights})
	if err != nil {
		return printer.Error("invalid scorer", err.Error(), []string{"Valid strategies: bucket, frequency"})
	}

	var samples []shake.Sample
	if scoreStdin {
		samples, err = readSamples(os.Stdin)
		if err != nil {
			return printer.Error("invalid sample input", err.Error(), []string{`Use one "x y z" triple per line`})
		}
	} else {
		accel := sim.NewNoiseAccelerometer(scoreSeed)
		for i := 0; i < scoreSamples; i++ {
			s, err := accel.Read()
			if err != nil {
				return err
			}
			samples = append(samples, s)
		}
	}

	scoreAll(scorer, samples, printer.Score)
	return nil
}

// scoreAll feeds samples in order, reporting each score with its scale maximum.
func scoreAll(scorer shake.Scorer, samples []shake.Sample, report func(i, score, top int)) {
	top := 100
	if scorer.Name() == shake.StrategyBucket {
		top = shake.MaxBucketLevel
	}
	for i, s := range samples {
		report(i, scorer.Score(s), top)
	}
}

// readSamples parses "x y z" or "x,y,z" lines. Blank lines and # comments are skipped.
func readSamples(r io.Reader) ([]shake.Sample, error) {
	var samples []shake.Sample
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: want 3 values, got %d", lineNo, len(fields))
		}

		var v [3]int
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			v[i] = n
		}
		samples = append(samples, shake.Sample{X: v[0], Y: v[1], Z: v[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	return samples, nil
}
