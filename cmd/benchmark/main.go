package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfierros/potledger/internal/domain"
	"github.com/mfierros/potledger/internal/session"
	"github.com/mfierros/potledger/internal/settle"
)

var (
	players    int
	iterations int
	withBank   bool
)

func init() {
	flag.IntVar(&players, "players", 100, "Participants per synthetic session")
	flag.IntVar(&iterations, "iterations", 1000, "Calculate() calls to time")
	flag.BoolVar(&withBank, "bank", false, "Route half the table through a session bank")
}

func main() {
	flag.Parse()
	log.Printf("Benchmarking settlement: players=%d iterations=%d bank=%v", players, iterations, withBank)

	sess := syntheticSession(players, withBank)

	// Warm-up and sanity: the synthetic ledger must actually settle.
	if _, err := settle.Calculate(sess); err != nil {
		log.Fatalf("synthetic session does not settle: %v", err)
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if _, err := settle.Calculate(sess); err != nil {
			log.Fatal(err)
		}
	}
	elapsed := time.Since(start)

	results := map[string]interface{}{
		"players":       players,
		"iterations":    iterations,
		"with_bank":     withBank,
		"total_sec":     elapsed.Seconds(),
		"per_call_usec": float64(elapsed.Microseconds()) / float64(iterations),
		"calls_per_sec": float64(iterations) / elapsed.Seconds(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%d.json", players)
	file, err := os.Create(filename)
	if err != nil {
		log.Fatalf("Unable to write results file: %v", err)
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}

// syntheticSession builds a balanced session: everyone buys in for the
// same stack, winners and losers pair off so the chip log sums to zero.
func syntheticSession(n int, bank bool) *domain.Session {
	sess, err := session.New("bench", decimal.NewFromFloat(0.5))
	if err != nil {
		log.Fatal(err)
	}

	rng := rand.New(rand.NewSource(42))
	const buyIn = 1000
	now := time.Now()

	type swing struct {
		p     *domain.Participant
		delta int64
	}
	var swings []swing
	for i := 0; i < n; i++ {
		p := session.AddParticipant(sess, fmt.Sprintf("player-%03d", i))
		if _, err := session.Record(sess, p.ID, domain.EntryBuyIn, buyIn, now); err != nil {
			log.Fatal(err)
		}
		swings = append(swings, swing{p: p})
	}
	// Pair winners with losers so every won chip was lost by someone.
	for i := 0; i+1 < n; i += 2 {
		d := rng.Int63n(buyIn)
		swings[i].delta = d
		swings[i+1].delta = -d
	}
	for _, s := range swings {
		cashOut := int64(buyIn) + s.delta
		if _, err := session.Record(sess, s.p.ID, domain.EntryCashOut, cashOut, now.Add(time.Hour)); err != nil {
			log.Fatal(err)
		}
		s.p.InGame = false
		if bank && s.delta < 0 {
			amount := decimal.NewFromInt(-s.delta).Mul(sess.ChipValue)
			pid := s.p.ID
			if _, err := session.RecordBankEntry(sess, domain.BankDeposit, amount, "bench deposit", &pid, nil); err != nil {
				log.Fatal(err)
			}
		}
	}
	return sess
}
