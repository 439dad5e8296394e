//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/markkurossi/agmpc"
	"github.com/markkurossi/agmpc/circuit"
	"github.com/markkurossi/agmpc/env"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
	flag "github.com/spf13/pflag"
)

func main() {
	party := flag.Int("party", 1, "party number, 1..parties")
	parties := flag.Int("parties", 2, "number of parties")
	addr := flag.String("addr", "", "comma-separated host:port of all parties")
	session := flag.String("session", "", "session UUID shared by all parties")
	circFile := flag.String("circuit", "", "Bristol circuit file")
	builtin := flag.String("builtin", "", "builtin circuit: adder32, sha1")
	input := flag.String("input", "", "party input: integer, or hex message for sha1")
	ssp := flag.Int("ssp", env.DefaultSSP, "statistical security parameter")
	seed := flag.String("seed", "", "hex seed for deterministic runs")
	verbose := flag.BoolP("verbose", "v", false, "verbose output")
	stats := flag.Bool("stats", false, "print timing and bandwidth statistics")
	flag.Parse()

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %s\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	circ, err := loadCircuit(*circFile, *builtin)
	if err != nil {
		log.Fatalf("%s", err)
	}
	if *verbose {
		log.Infof("circuit: %v", circ)
	}

	inputs, err := parseInput(circ, *builtin, tensor.Party(*party), *input)
	if err != nil {
		log.Fatalf("invalid input: %s", err)
	}

	addrs := strings.Split(*addr, ",")
	if len(addrs) != *parties {
		log.Fatalf("got %d addresses for %d parties", len(addrs), *parties)
	}
	id, err := uuid.Parse(*session)
	if err != nil {
		log.Fatalf("invalid session: %s", err)
	}

	cfg := &env.Config{
		Logger:  log,
		SSP:     *ssp,
		Verbose: *verbose,
	}
	if len(*seed) > 0 {
		data, err := hex.DecodeString(*seed)
		if err != nil {
			log.Fatalf("invalid seed: %s", err)
		}
		cfg.Rand = env.NewSeededRand(append(data, byte(*party)))
	}

	nw, err := p2p.DialNetwork(context.Background(), tensor.Party(*party),
		addrs, id, cfg.PartyLogger(*party))
	if err != nil {
		log.Fatalf("network: %s", err)
	}
	s, err := agmpc.NewSession(nw, cfg)
	if err != nil {
		nw.Abort()
		log.Fatalf("session: %s", err)
	}
	result, err := s.Run(circ, inputs)
	if err != nil {
		log.Fatalf("evaluation failed: %s", err)
	}
	if err := s.Close(); err != nil {
		log.Warnf("close: %s", err)
	}

	printResult(*builtin, result)
	if *stats {
		s.Timing().Print(os.Stdout, s.Stats())
	}
}

func loadCircuit(file, builtin string) (*circuit.Circuit, error) {
	switch {
	case len(file) > 0 && len(builtin) > 0:
		return nil, errors.New("both --circuit and --builtin specified")
	case len(file) > 0:
		return circuit.ParseFile(file)
	}
	switch builtin {
	case "adder32":
		return circuit.NewAdder(32)
	case "sha1":
		return circuit.NewSHA1()
	case "":
		return nil, errors.New("no circuit specified")
	default:
		return nil, errors.Newf("unknown builtin circuit: %s", builtin)
	}
}

// parseInput converts the party's input to the bits of its input
// range.
func parseInput(circ *circuit.Circuit, builtin string, party tensor.Party,
	input string) ([]bool, error) {

	var n int
	if int(party) <= len(circ.Inputs) {
		n = circ.Inputs[party-1]
	}
	if n == 0 {
		if len(input) > 0 {
			return nil, errors.Newf("party %v has no inputs", party)
		}
		return nil, nil
	}

	if builtin == "sha1" {
		msg, err := hex.DecodeString(input)
		if err != nil {
			return nil, err
		}
		if len(msg) > 55 {
			return nil, errors.Newf("message too long: %d bytes", len(msg))
		}
		var block [64]byte
		copy(block[:], msg)
		block[len(msg)] = 0x80
		bits := uint64(len(msg)) * 8
		for i := 0; i < 8; i++ {
			block[63-i] = byte(bits >> (8 * i))
		}
		return circuit.BytesToBits(block[:]), nil
	}

	if len(input) == 0 {
		input = "0"
	}
	v, ok := new(big.Int).SetString(input, 0)
	if !ok {
		return nil, errors.Newf("invalid integer: %s", input)
	}
	result := make([]bool, n)
	for i := range result {
		result[i] = v.Bit(i) == 1
	}
	return result, nil
}

func printResult(builtin string, result []bool) {
	if builtin == "sha1" {
		fmt.Printf("Result: %x\n", circuit.BitsToBytes(result))
		return
	}
	v := new(big.Int)
	for i := len(result) - 1; i >= 0; i-- {
		v.Lsh(v, 1)
		if result[i] {
			v.SetBit(v, 0, 1)
		}
	}
	fmt.Printf("Result: %s\n", v)
}
