//
// Copyright (c) 2022-2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"math/rand"
	"strings"
	"testing"

	"github.com/markkurossi/agmpc/p2p"
)

var andCircuit = `1 3
1 1 1

2 1 0 1 2 AND
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(andCircuit))
	if err != nil {
		t.Fatalf("Parse failed: %s", err)
	}
	if c.NumGates != 1 || c.NumWires != 3 || c.NumOutputs != 1 {
		t.Fatalf("invalid circuit: %v", c)
	}
	if len(c.Inputs) != 2 || c.NumInputs() != 2 || c.NumANDs() != 1 {
		t.Fatalf("invalid inputs: %v", c.Inputs)
	}
	for i := 0; i < 4; i++ {
		x := i&1 == 1
		y := i&2 == 2
		out, err := c.Compute([]bool{x, y})
		if err != nil {
			t.Fatal(err)
		}
		if out[0] != (x && y) {
			t.Errorf("%v AND %v = %v", x, y, out[0])
		}
	}
}

func TestParseMultiParty(t *testing.T) {
	data := `3 7
1 1 1 1

2 1 0 1 4 XOR
1 1 2 5 NOT
2 1 4 5 6 AND
`
	c, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Inputs) != 3 || c.Stats[INV] != 1 {
		t.Fatalf("invalid circuit: %v", c)
	}
	start, n := c.InputRange(2)
	if start != 2 || n != 1 {
		t.Fatalf("InputRange(2)=%v,%v", start, n)
	}
	if c.OutputWire(0) != 6 {
		t.Fatalf("OutputWire(0)=%v", c.OutputWire(0))
	}
}

var parseErrors = []struct {
	name string
	data string
}{
	{"empty", ""},
	{"header", "1\n1 1 1\n2 1 0 1 2 AND\n"},
	{"io", "1 3\n1\n2 1 0 1 2 AND\n"},
	{"count", "2 3\n1 1 1\n2 1 0 1 2 AND\n"},
	{"extra", "0 3\n1 1 1\n2 1 0 1 2 AND\n"},
	{"arity", "1 3\n1 1 1\n1 1 0 2 AND\n"},
	{"inv arity", "1 3\n1 1 1\n2 1 0 1 2 INV\n"},
	{"operation", "1 3\n1 1 1\n2 1 0 1 2 NAND\n"},
	{"range", "1 3\n1 1 1\n2 1 0 1 3 AND\n"},
	{"undefined", "2 4\n1 1 1\n2 1 0 2 3 AND\n1 1 0 2 INV\n"},
	{"input write", "1 3\n1 1 1\n2 1 0 2 1 AND\n"},
	{"twice", "2 3\n1 1 1\n2 1 0 1 2 AND\n1 1 0 2 INV\n"},
	{"fit", "1 3\n2 1 1\n2 1 0 1 2 AND\n"},
	{"number", "1 3\n1 1 1\n2 1 0 x 2 AND\n"},
	{"output", "1 4\n1 1 1\n2 1 0 1 2 XOR\n"},
}

func TestParseErrors(t *testing.T) {
	for _, test := range parseErrors {
		_, err := Parse(strings.NewReader(test.data))
		if err == nil {
			t.Errorf("%s: parse succeeded", test.name)
		}
	}
}

func TestMarshal(t *testing.T) {
	c, err := NewAdder(8)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := c.Marshal(&buf); err != nil {
		t.Fatal(err)
	}
	c2, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c2.NumGates != c.NumGates || c2.NumWires != c.NumWires ||
		c2.NumOutputs != c.NumOutputs || c2.Stats != c.Stats {
		t.Fatalf("circuit mismatch: %v vs. %v", c2, c)
	}
	for i := range c.Gates {
		if c.Gates[i] != c2.Gates[i] {
			t.Fatalf("gate %d: %v vs. %v", i, c2.Gates[i], c.Gates[i])
		}
	}
}

func TestInvalidGate(t *testing.T) {
	c := &Circuit{
		NumGates:   1,
		NumWires:   3,
		Inputs:     []int{1, 1},
		NumOutputs: 1,
		Gates: []Gate{
			{Input0: 0, Input1: 1, Output: 2, Op: Operation(7)},
		},
	}
	if _, err := c.Compute([]bool{true, false}); err == nil {
		t.Errorf("Compute accepted an invalid gate")
	}
	var buf bytes.Buffer
	if err := c.Marshal(&buf); err == nil {
		t.Errorf("Marshal accepted an invalid gate")
	}
}

func TestAdder(t *testing.T) {
	c, err := NewAdder(32)
	if err != nil {
		t.Fatal(err)
	}
	rnd := rand.New(rand.NewSource(1))
	values := [][2]uint64{
		{3, 5},
		{0, 0},
		{0xffffffff, 1},
		{0x80000000, 0x80000000},
	}
	for i := 0; i < 50; i++ {
		values = append(values, [2]uint64{
			uint64(rnd.Uint32()), uint64(rnd.Uint32()),
		})
	}
	for _, v := range values {
		in := append(IntToBits(v[0], 32), IntToBits(v[1], 32)...)
		out, err := c.Compute(in)
		if err != nil {
			t.Fatal(err)
		}
		expected := (v[0] + v[1]) & 0xffffffff
		if got := BitsToInt(out); got != expected {
			t.Errorf("%d+%d=%d, expected %d", v[0], v[1], got, expected)
		}
	}
	if c.NumANDs() != 31 {
		t.Errorf("adder has %d ANDs, expected 31", c.NumANDs())
	}
}

func sha1Block(msg []byte) []byte {
	var block [64]byte
	copy(block[:], msg)
	block[len(msg)] = 0x80
	bits := uint64(len(msg)) * 8
	for i := 0; i < 8; i++ {
		block[63-i] = byte(bits >> (8 * i))
	}
	return block[:]
}

func TestSHA1(t *testing.T) {
	c, err := NewSHA1()
	if err != nil {
		t.Fatal(err)
	}
	if c.NumInputs() != 512 || c.NumOutputs != 160 {
		t.Fatalf("invalid SHA-1 circuit: %v", c)
	}
	for _, msg := range []string{"", "abc", "The quick brown fox"} {
		out, err := c.Compute(BytesToBits(sha1Block([]byte(msg))))
		if err != nil {
			t.Fatal(err)
		}
		got := BitsToBytes(out)
		expected := sha1.Sum([]byte(msg))
		if !bytes.Equal(got, expected[:]) {
			t.Errorf("SHA-1(%q)=%x, expected %x", msg, got, expected)
		}
	}
	out, err := c.Compute(BytesToBits(sha1Block(nil)))
	if err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(BitsToBytes(out)) !=
		"da39a3ee5e6b4b0d3255bfef95601890afd80709" {
		t.Errorf("SHA-1 of the empty message: %x", BitsToBytes(out))
	}
}

func TestBuilderConstants(t *testing.T) {
	b := NewBuilder(1)
	x := b.Input(0, 0)
	c, err := b.Compile([]Wire{b.Zero(), b.One(), x, x, b.INV(x)})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []bool{false, true} {
		out, err := c.Compute([]bool{v})
		if err != nil {
			t.Fatal(err)
		}
		expected := []bool{false, true, v, v, !v}
		for i := range expected {
			if out[i] != expected[i] {
				t.Errorf("x=%v: output %d=%v", v, i, out[i])
			}
		}
	}
	var buf bytes.Buffer
	if err := c.Marshal(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(&buf); err != nil {
		t.Fatalf("compiled circuit does not parse: %v", err)
	}

	if _, err := NewBuilder(0).Compile([]Wire{constOne}); err == nil {
		t.Errorf("constant output without inputs compiled")
	}
}

func TestBits(t *testing.T) {
	data := []byte{0x80, 0x01, 0xa5}
	bits := BytesToBits(data)
	if !bits[0] || bits[1] || !bits[15] {
		t.Fatalf("BytesToBits: %v", bits)
	}
	if !bytes.Equal(BitsToBytes(bits), data) {
		t.Fatalf("BitsToBytes: %x", BitsToBytes(bits))
	}
	if BitsToInt(IntToBits(0xdeadbeef, 32)) != 0xdeadbeef {
		t.Fatalf("IntToBits/BitsToInt mismatch")
	}
	if BitsToInt(IntToBits(0x1ff, 8)) != 0xff {
		t.Fatalf("IntToBits did not truncate")
	}
}

func TestTiming(t *testing.T) {
	timing := NewTiming()
	s := timing.Sample("Step", []string{FileSize(1500).String()})
	s.AbsSubSample("Sub", 0)
	timing.Sample("Empty", nil)

	stats := p2p.NewIOStats()
	stats.Sent.Store(2000)
	stats.Recvd.Store(3000000)

	var buf bytes.Buffer
	timing.Print(&buf, stats)
	for _, s := range []string{"Step", "Sub", "Total", "1kB", "3MB"} {
		if !strings.Contains(buf.String(), s) {
			t.Errorf("report does not contain %q:\n%s", s, buf.String())
		}
	}
}
