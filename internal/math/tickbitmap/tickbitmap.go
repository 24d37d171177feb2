// Package tickbitmap implements the sparse bitmap over initialized,
// spacing-aligned ticks: one bit per tick, packed 256 to a word and keyed
// by word position so the swap loop can find the next initialized tick
// within a single word in bounded work.
package tickbitmap

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrMisaligned is returned when a tick is not a multiple of tickSpacing.
var ErrMisaligned = errors.New("tickbitmap: tick not aligned to spacing")

// Bitmap is a sparse mapping from word position to a 256-bit word; a word
// is only allocated once a tick inside it is flipped.
type Bitmap struct {
	words map[int16]*uint256.Int
}

// New returns an empty bitmap.
func New() *Bitmap {
	return &Bitmap{words: make(map[int16]*uint256.Int)}
}

// Clone deep-copies the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	c := New()
	for k, v := range b.words {
		c.words[k] = v.Clone()
	}
	return c
}

// position decomposes a tick into (wordPos, bitPos) after compressing by
// tickSpacing.
func position(tick int32, tickSpacing int32) (wordPos int16, bitPos uint8, err error) {
	if tick%tickSpacing != 0 {
		return 0, 0, ErrMisaligned
	}
	compressed := tick / tickSpacing
	wordPos = int16(compressed >> 8)
	bitPos = uint8(compressed & 0xFF)
	return wordPos, bitPos, nil
}

// IsInitialized reports whether the bit for tick is set.
func (b *Bitmap) IsInitialized(tick, tickSpacing int32) (bool, error) {
	wordPos, bitPos, err := position(tick, tickSpacing)
	if err != nil {
		return false, err
	}
	word, ok := b.words[wordPos]
	if !ok {
		return false, nil
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	masked := new(uint256.Int).And(word, mask)
	return !masked.IsZero(), nil
}

// FlipTick toggles the bit for tick, which must be a multiple of
// tickSpacing.
func (b *Bitmap) FlipTick(tick, tickSpacing int32) error {
	wordPos, bitPos, err := position(tick, tickSpacing)
	if err != nil {
		return err
	}
	word, ok := b.words[wordPos]
	if !ok {
		word = new(uint256.Int)
		b.words[wordPos] = word
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	word.Xor(word, mask)
	if word.IsZero() {
		delete(b.words, wordPos)
	}
	return nil
}

// NextInitializedTickWithinOneWord finds the next initialized tick within
// the single word containing tick: at or below it when lte is true (price
// moving down, zeroForOne), or strictly above it when lte is false (price
// moving up). If no initialized tick exists within that word, it returns
// the boundary tick of the word with initialized=false so the swap loop
// can advance one whole word and retry — the bounded-work guarantee.
func (b *Bitmap) NextInitializedTickWithinOneWord(tick, tickSpacing int32, lte bool) (next int32, initialized bool, err error) {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}

	if lte {
		wordPos, bitPos, err := compressedPosition(compressed)
		if err != nil {
			return 0, false, err
		}
		mask := onesUpTo(bitPos) // bits [0, bitPos] set
		word := b.words[wordPos]
		var masked *uint256.Int
		if word == nil {
			masked = new(uint256.Int)
		} else {
			masked = new(uint256.Int).And(word, mask)
		}
		if masked.IsZero() {
			boundary := int32(wordPos) * 256 * tickSpacing
			return boundary, false, nil
		}
		msb := mostSignificantBit(masked)
		return (int32(wordPos)*256 + int32(msb)) * tickSpacing, true, nil
	}

	compressedNext := compressed + 1
	wordPos, bitPos, err := compressedPosition(compressedNext)
	if err != nil {
		return 0, false, err
	}
	mask := onesFrom(bitPos) // bits [bitPos, 255] set
	word := b.words[wordPos]
	var masked *uint256.Int
	if word == nil {
		masked = new(uint256.Int)
	} else {
		masked = new(uint256.Int).And(word, mask)
	}
	if masked.IsZero() {
		boundary := (int32(wordPos)*256 + 255) * tickSpacing
		return boundary, false, nil
	}
	lsb := leastSignificantBit(masked)
	return (int32(wordPos)*256 + int32(lsb)) * tickSpacing, true, nil
}

func compressedPosition(compressed int32) (wordPos int16, bitPos uint8, err error) {
	return int16(compressed >> 8), uint8(uint32(compressed) & 0xFF), nil
}

func onesUpTo(bitPos uint8) *uint256.Int {
	if bitPos == 255 {
		return new(uint256.Int).Not(new(uint256.Int))
	}
	one := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos)+1)
	return new(uint256.Int).Sub(one, uint256.NewInt(1))
}

func onesFrom(bitPos uint8) *uint256.Int {
	low := onesUpTo(bitPos)
	if bitPos == 0 {
		return new(uint256.Int).Not(new(uint256.Int))
	}
	lowExclusive := new(uint256.Int).Rsh(low, 1)
	all := new(uint256.Int).Not(new(uint256.Int))
	return new(uint256.Int).Xor(all, lowExclusive)
}

// mostSignificantBit returns the index (0-255) of the highest set bit.
func mostSignificantBit(x *uint256.Int) int {
	for i := 255; i >= 0; i-- {
		bit := new(uint256.Int).And(new(uint256.Int).Rsh(x, uint(i)), uint256.NewInt(1))
		if !bit.IsZero() {
			return i
		}
	}
	return 0
}

// leastSignificantBit returns the index (0-255) of the lowest set bit.
func leastSignificantBit(x *uint256.Int) int {
	for i := 0; i < 256; i++ {
		bit := new(uint256.Int).And(new(uint256.Int).Rsh(x, uint(i)), uint256.NewInt(1))
		if !bit.IsZero() {
			return i
		}
	}
	return 255
}
