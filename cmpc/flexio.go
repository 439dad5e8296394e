//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package cmpc

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/agmpc/abit"
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/commit"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
)

// Input and output assignments. Positive assignments name the party
// that provides the input or receives the output.
const (
	// Public inputs are known to all parties and public outputs are
	// revealed to all parties.
	Public = 0
	// AuthShare bits are carried authenticated shares.
	AuthShare = -1
	// Unauth inputs are XOR-shared by all parties without
	// authentication.
	Unauth = -2
)

// Share is an authenticated share of a bit. MAC and Key are indexed
// by party.
type Share struct {
	Value bool
	MAC   []ot.Label
	Key   []ot.Label
}

// NewShare creates a zero share for parties parties.
func NewShare(parties int) *Share {
	return &Share{
		MAC: make([]ot.Label, parties+1),
		Key: make([]ot.Label, parties+1),
	}
}

func shareOf(bits *abit.Bits, i int) *Share {
	s := NewShare(bits.Parties())
	s.Value = bits.Value[i]
	for p := 1; p <= bits.Parties(); p++ {
		s.MAC[p] = bits.MAC.At(tensor.Party(p), i)
		s.Key[p] = bits.Key.At(tensor.Party(p), i)
	}
	return s
}

// ioContext holds the evaluator state the input and output
// reconciliation needs.
type ioContext struct {
	nw     *p2p.Network
	party  tensor.Party
	delta  ot.Label
	wires  *abit.Bits
	rand   io.Reader
	tamper *tamperHooks
}

// tamperHooks modify the outgoing input and output messages to a
// peer. Unset hooks leave the messages intact.
type tamperHooks struct {
	inputMasks    func(peer tensor.Party, o *opening)
	maskedInputs  func(peer tensor.Party, bits []bool)
	outputLabels  func(peer tensor.Party, labels []ot.Label)
	outputOpening func(peer tensor.Party, o *opening)
}

// opening is an opened share with its MAC.
type opening struct {
	bits []bool
	macs []ot.Label
}

func newOpening(n int) *opening {
	return &opening{
		bits: make([]bool, n),
		macs: make([]ot.Label, n),
	}
}

func (o *opening) send(c *p2p.Conn) error {
	if err := c.SendBools(o.bits); err != nil {
		return err
	}
	return c.SendLabels(o.macs)
}

func (o *opening) receive(c *p2p.Conn) error {
	if err := c.ReceiveBools(o.bits); err != nil {
		return err
	}
	return c.ReceiveLabels(o.macs)
}

// verify checks the opening against keys.
func (o *opening) verify(keys []ot.Label, delta ot.Label) bool {
	for i := range o.bits {
		k := keys[i]
		k.XorIf(delta, o.bits[i])
		if !k.Equal(o.macs[i]) {
			return false
		}
	}
	return true
}

func positions(assign []int, match func(who int) bool) []int {
	var result []int
	for i, who := range assign {
		if match(who) {
			result = append(result, i)
		}
	}
	return result
}

// FlexIn assigns the circuit inputs to parties and input
// disciplines.
type FlexIn struct {
	parties int
	party   tensor.Party
	assign  []int
	plain   []bool
	shares  []*Share
}

// NewFlexIn creates an input assignment of length bits for the party.
// All inputs are initially public.
func NewFlexIn(parties int, party tensor.Party, length int) *FlexIn {
	return &FlexIn{
		parties: parties,
		party:   party,
		assign:  make([]int, length),
		plain:   make([]bool, length),
		shares:  make([]*Share, length),
	}
}

// Len returns the number of input bits.
func (in *FlexIn) Len() int {
	return len(in.assign)
}

func (in *FlexIn) checkPos(pos int) error {
	if pos < 0 || pos >= len(in.assign) {
		return abort.Misusef("input position %d out of range", pos)
	}
	return nil
}

// AssignParty assigns the input position to who. The who is a party
// number or one of Public, AuthShare, and Unauth.
func (in *FlexIn) AssignParty(pos, who int) error {
	if err := in.checkPos(pos); err != nil {
		return err
	}
	if who < Unauth || who > in.parties {
		return abort.Misusef("invalid input assignment %d", who)
	}
	in.assign[pos] = who
	return nil
}

// AssignPlaintext sets the plaintext value of the input position. It
// is allowed for the party's own, public, and unauthenticated inputs.
func (in *FlexIn) AssignPlaintext(pos int, bit bool) error {
	if err := in.checkPos(pos); err != nil {
		return err
	}
	who := in.assign[pos]
	if who != int(in.party) && who != Public && who != Unauth {
		return abort.Misusef("%v: plaintext for input %d assigned to %d",
			in.party, pos, who)
	}
	in.plain[pos] = bit
	return nil
}

// AssignShare sets the carried authenticated share of the input
// position.
func (in *FlexIn) AssignShare(pos int, share *Share) error {
	if err := in.checkPos(pos); err != nil {
		return err
	}
	if in.assign[pos] != AuthShare {
		return abort.Misusef("share for input %d assigned to %d",
			pos, in.assign[pos])
	}
	if share == nil || len(share.MAC) != in.parties+1 ||
		len(share.Key) != in.parties+1 {
		return abort.Misusef("invalid share for input %d", pos)
	}
	in.shares[pos] = share
	return nil
}

// input computes the masked input bits x⊕λ of all input positions.
func (in *FlexIn) input(ctx *ioContext) ([]bool, error) {
	nw := ctx.nw
	self := int(ctx.party)
	n := len(in.assign)
	mask := ctx.wires

	// The carried shares are masked with the input wire masks.
	auth := positions(in.assign, func(who int) bool {
		return who == AuthShare
	})
	carried := abit.NewBits(nw.Size(), len(auth))
	all := make([]int, len(auth))
	for idx, i := range auth {
		s := in.shares[i]
		if s == nil {
			return nil, abort.Misusef("share for input %d not assigned", i)
		}
		all[idx] = idx
		carried.Value[idx] = s.Value != mask.Value[i]
		for p := 1; p <= nw.Size(); p++ {
			pp := tensor.Party(p)
			carried.MAC.Set(pp, idx, s.MAC[p])
			carried.MAC.Ptr(pp, idx).Xor(mask.MAC.At(pp, i))
			carried.Key.Set(pp, idx, s.Key[p])
			carried.Key.Ptr(pp, idx).Xor(mask.Key.At(pp, i))
		}
	}
	unauth := positions(in.assign, func(who int) bool {
		return who == Unauth
	})
	unauthBits := make([]bool, len(unauth))
	for idx, i := range unauth {
		unauthBits[idx] = in.plain[i] != mask.Value[i]
	}
	public := positions(in.assign, func(who int) bool {
		return who == Public
	})
	own := positions(in.assign, func(who int) bool {
		return who == self
	})

	type received struct {
		private *opening
		auth    *opening
		unauth  []bool
		public  *opening
	}
	recv := make([]received, nw.Size()+1)
	cheat := make([]bool, nw.Size()+1)

	// Round 1: open the masks of private inputs to their owners, and
	// open the masked carried shares, unauthenticated shares, and the
	// masks of public inputs to all.
	err := nw.ForEachPeer(func(peer tensor.Party) error {
		theirs := positions(in.assign, func(who int) bool {
			return who == int(peer)
		})
		r := received{
			private: newOpening(len(own)),
			auth:    newOpening(len(auth)),
			unauth:  make([]bool, len(unauth)),
			public:  newOpening(len(public)),
		}
		masks := openBits(mask, theirs, peer)
		if ctx.tamper != nil && ctx.tamper.inputMasks != nil {
			ctx.tamper.inputMasks(peer, masks)
		}
		err := nw.Exchange(peer,
			func(c *p2p.Conn) error {
				if err := masks.send(c); err != nil {
					return err
				}
				if err := openBits(carried, all, peer).send(c); err != nil {
					return err
				}
				if err := c.SendBools(unauthBits); err != nil {
					return err
				}
				return openBits(mask, public, peer).send(c)
			},
			func(c *p2p.Conn) error {
				if err := r.private.receive(c); err != nil {
					return err
				}
				if err := r.auth.receive(c); err != nil {
					return err
				}
				if err := c.ReceiveBools(r.unauth); err != nil {
					return err
				}
				return r.public.receive(c)
			})
		if err != nil {
			return err
		}
		ok := r.private.verify(keysOf(mask, own, peer), ctx.delta)
		ok = r.auth.verify(carried.Key.Row(peer), ctx.delta) && ok
		ok = r.public.verify(keysOf(mask, public, peer), ctx.delta) && ok
		cheat[peer] = !ok
		recv[peer] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, peer := range nw.Peers() {
		if cheat[peer] {
			return nil, abort.Cheatingf("flexin: invalid mask opening from peer %d",
				peer)
		}
	}

	masked := make([]bool, n)
	for idx, i := range auth {
		masked[i] = carried.Value[idx]
	}
	for idx, i := range unauth {
		masked[i] = unauthBits[idx]
	}
	for _, i := range public {
		masked[i] = in.plain[i] != mask.Value[i]
	}
	ownMasked := make([]bool, len(own))
	for idx, i := range own {
		ownMasked[idx] = in.plain[i] != mask.Value[i]
	}
	for _, peer := range nw.Peers() {
		r := recv[peer]
		for idx, i := range auth {
			masked[i] = masked[i] != r.auth.bits[idx]
		}
		for idx, i := range unauth {
			masked[i] = masked[i] != r.unauth[idx]
		}
		for idx, i := range public {
			masked[i] = masked[i] != r.public.bits[idx]
		}
		for idx := range own {
			ownMasked[idx] = ownMasked[idx] != r.private.bits[idx]
		}
	}
	for idx, i := range own {
		masked[i] = ownMasked[idx]
	}

	// Round 2: the owners broadcast their masked private inputs.
	err = nw.ForEachPeer(func(peer tensor.Party) error {
		theirs := positions(in.assign, func(who int) bool {
			return who == int(peer)
		})
		bits := make([]bool, len(theirs))
		sent := ownMasked
		if ctx.tamper != nil && ctx.tamper.maskedInputs != nil {
			sent = append([]bool(nil), ownMasked...)
			ctx.tamper.maskedInputs(peer, sent)
		}
		err := nw.Exchange(peer,
			func(c *p2p.Conn) error {
				return c.SendBools(sent)
			},
			func(c *p2p.Conn) error {
				return c.ReceiveBools(bits)
			})
		if err != nil {
			return err
		}
		for idx, i := range theirs {
			masked[i] = bits[idx]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// All parties must agree on the masked inputs and on the public
	// plaintexts.
	publicPlain := make([]bool, len(public))
	for idx, i := range public {
		publicPlain[idx] = in.plain[i]
	}
	err = nw.ForEachPeer(func(peer tensor.Party) error {
		feq := commit.NewFeq(nw, peer)
		feq.AddBools(masked)
		feq.AddBools(publicPlain)
		if err := feq.Compare(ctx.rand); err != nil {
			return errors.Wrap(err, "flexin")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return masked, nil
}

// openBits collects the values of bits at the positions with their
// MACs under the peer's key.
func openBits(bits *abit.Bits, pos []int, peer tensor.Party) *opening {
	o := newOpening(len(pos))
	for idx, i := range pos {
		o.bits[idx] = bits.Value[i]
		o.macs[idx] = bits.MAC.At(peer, i)
	}
	return o
}

func keysOf(bits *abit.Bits, pos []int, peer tensor.Party) []ot.Label {
	result := make([]ot.Label, len(pos))
	for idx, i := range pos {
		result[idx] = bits.Key.At(peer, i)
	}
	return result
}

// FlexOut assigns the circuit outputs to parties and output
// disciplines.
type FlexOut struct {
	parties int
	party   tensor.Party
	assign  []int
	plain   []bool
	shares  []*Share
	done    bool
}

// NewFlexOut creates an output assignment of length bits for the
// party. All outputs are initially public.
func NewFlexOut(parties int, party tensor.Party, length int) *FlexOut {
	return &FlexOut{
		parties: parties,
		party:   party,
		assign:  make([]int, length),
		plain:   make([]bool, length),
		shares:  make([]*Share, length),
	}
}

// Len returns the number of output bits.
func (out *FlexOut) Len() int {
	return len(out.assign)
}

func (out *FlexOut) checkPos(pos int) error {
	if pos < 0 || pos >= len(out.assign) {
		return abort.Misusef("output position %d out of range", pos)
	}
	return nil
}

// AssignParty assigns the output position to who. The who is a party
// number, Public, or AuthShare.
func (out *FlexOut) AssignParty(pos, who int) error {
	if err := out.checkPos(pos); err != nil {
		return err
	}
	if who < AuthShare || who > out.parties {
		return abort.Misusef("invalid output assignment %d", who)
	}
	out.assign[pos] = who
	return nil
}

// Plaintext returns the plaintext value of the output position. It
// is allowed for the party's own and public outputs.
func (out *FlexOut) Plaintext(pos int) (bool, error) {
	if err := out.checkPos(pos); err != nil {
		return false, err
	}
	who := out.assign[pos]
	if who != int(out.party) && who != Public {
		return false, abort.Misusef("%v: output %d assigned to %d",
			out.party, pos, who)
	}
	if !out.done {
		return false, abort.Misusef("output not computed")
	}
	return out.plain[pos], nil
}

// Share returns the authenticated share of the output position. The
// share can be carried to another circuit of the same session.
func (out *FlexOut) Share(pos int) (*Share, error) {
	if err := out.checkPos(pos); err != nil {
		return nil, err
	}
	if out.assign[pos] != AuthShare {
		return nil, abort.Misusef("output %d assigned to %d",
			pos, out.assign[pos])
	}
	if !out.done {
		return nil, abort.Misusef("output not computed")
	}
	return out.shares[pos], nil
}

// output resolves the outputs from the masked output wire values.
// The evaluator passes its evaluation labels and masked wire values,
// the other parties pass their zero labels.
func (out *FlexOut) output(ctx *ioContext, masked []bool, shift int,
	evalLabels *tensor.Matrix[ot.Label], labels []ot.Label) error {

	nw := ctx.nw
	self := int(ctx.party)
	n := len(out.assign)
	mask := ctx.wires
	m := make([]bool, n)

	// The evaluator sends the output labels to each garbler, which
	// decodes them against its zero labels.
	if ctx.party == tensor.Evaluator {
		copy(m, masked[shift:shift+n])
		err := nw.ForEachPeer(func(peer tensor.Party) error {
			sent := evalLabels.Row(peer)[shift : shift+n]
			if ctx.tamper != nil && ctx.tamper.outputLabels != nil {
				sent = append([]ot.Label(nil), sent...)
				ctx.tamper.outputLabels(peer, sent)
			}
			c := nw.Send(peer)
			if err := c.SendLabels(sent); err != nil {
				return err
			}
			return nw.Flush(peer)
		})
		if err != nil {
			return err
		}
	} else {
		received := make([]ot.Label, n)
		c := nw.Recv(tensor.Evaluator)
		if err := c.ReceiveLabels(received); err != nil {
			return err
		}
		for i := range received {
			zero := labels[shift+i]
			one := zero
			one.Xor(ctx.delta)
			switch {
			case received[i].Equal(zero):
				m[i] = false
			case received[i].Equal(one):
				m[i] = true
			default:
				return abort.Cheatingf("flexout: output label %d mismatch", i)
			}
		}
	}

	// Open the output masks to their owners, or to everyone for
	// public outputs.
	outPositions := func(p int) []int {
		all := make([]int, 0, n)
		for i, who := range out.assign {
			if who == Public || who == p {
				all = append(all, shift+i)
			}
		}
		return all
	}
	ownPos := outPositions(self)
	recv := make([]*opening, nw.Size()+1)
	cheat := make([]bool, nw.Size()+1)

	err := nw.ForEachPeer(func(peer tensor.Party) error {
		r := newOpening(len(ownPos))
		masks := openBits(mask, outPositions(int(peer)), peer)
		if ctx.tamper != nil && ctx.tamper.outputOpening != nil {
			ctx.tamper.outputOpening(peer, masks)
		}
		err := nw.Exchange(peer,
			func(c *p2p.Conn) error {
				return masks.send(c)
			},
			func(c *p2p.Conn) error {
				return r.receive(c)
			})
		if err != nil {
			return err
		}
		cheat[peer] = !r.verify(keysOf(mask, ownPos, peer), ctx.delta)
		recv[peer] = r
		return nil
	})
	if err != nil {
		return err
	}
	for _, peer := range nw.Peers() {
		if cheat[peer] {
			return abort.Cheatingf("flexout: invalid output mask from peer %d",
				peer)
		}
	}

	for i, who := range out.assign {
		if who != AuthShare {
			continue
		}
		s := shareOf(mask, shift+i)
		if ctx.party == tensor.Evaluator {
			s.Value = s.Value != m[i]
		} else {
			s.Key[tensor.Evaluator].XorIf(ctx.delta, m[i])
		}
		out.shares[i] = s
	}

	var idx int
	for i, who := range out.assign {
		if who != Public && who != self {
			continue
		}
		v := mask.Value[shift+i] != m[i]
		for _, peer := range nw.Peers() {
			v = v != recv[peer].bits[idx]
		}
		out.plain[i] = v
		idx++
	}
	out.done = true
	return nil
}
