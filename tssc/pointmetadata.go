package tssc

// codeTable is the adaptive prefix-code assigner each point's history
// uses to favor its most frequent codes with shorter bit sequences. It
// starts in mode 4 (three escape prefixes of increasing length ahead of
// a full 5-bit code) and periodically re-ranks itself from observed
// frequency, the same four-mode scheme described for STTP's TSSC codec.
type codeTable struct {
	stats          [32]int
	sinceLastAdapt int
	startupStage   int

	mode int // 1..4

	mode2Code  code
	mode3Code1 code
	mode3Code2 code
	mode4Code1 code
	mode4Code2 code
	mode4Code3 code
}

func newCodeTable() *codeTable {
	return &codeTable{
		mode:       4,
		mode4Code1: codeValue1,
		mode4Code2: codeValue2,
		mode4Code3: codeValue3,
	}
}

func (t *codeTable) writeCode(w *bitWriter, c code) {
	switch t.mode {
	case 1:
		w.writeBits(uint64(c), 5)
	case 2:
		if c == t.mode2Code {
			w.writeBits(1, 1)
		} else {
			w.writeBits(uint64(c), 6)
		}
	case 3:
		switch c {
		case t.mode3Code1:
			w.writeBits(1, 1)
		case t.mode3Code2:
			w.writeBits(1, 2)
		default:
			w.writeBits(uint64(c), 7)
		}
	default:
		switch c {
		case t.mode4Code1:
			w.writeBits(1, 1)
		case t.mode4Code2:
			w.writeBits(1, 2)
		case t.mode4Code3:
			w.writeBits(1, 3)
		default:
			w.writeBits(uint64(c), 8)
		}
	}
	t.observe(c)
}

func (t *codeTable) readCode(r *bitReader) (code, error) {
	var c code
	switch t.mode {
	case 1:
		v, err := r.readBits(5)
		if err != nil {
			return 0, err
		}
		c = code(v)
	case 2:
		b, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if b == 1 {
			c = t.mode2Code
		} else if v, err := r.readBits(5); err != nil {
			return 0, err
		} else {
			c = code(v)
		}
	case 3:
		c, err := t.readEscaped(r, []code{t.mode3Code1, t.mode3Code2})
		if err != nil {
			return 0, err
		}
		t.observe(c)
		return c, nil
	default:
		c, err := t.readEscaped(r, []code{t.mode4Code1, t.mode4Code2, t.mode4Code3})
		if err != nil {
			return 0, err
		}
		t.observe(c)
		return c, nil
	}
	t.observe(c)
	return c, nil
}

// readEscaped reads up to len(escapes) single-bit escapes, each selecting
// escapes[i] on a 1 bit, falling through to the base 5-bit code once every
// escape bit has read 0 — matching the write side's choice to emit the
// escape zero bits and the code's 5 value bits as one contiguous field.
func (t *codeTable) readEscaped(r *bitReader, escapes []code) (code, error) {
	for _, esc := range escapes {
		b, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if b == 1 {
			return esc, nil
		}
	}
	v, err := r.readBits(5)
	if err != nil {
		return 0, err
	}
	return code(v), nil
}

func (t *codeTable) observe(c code) {
	t.stats[c]++
	t.sinceLastAdapt++

	switch {
	case t.startupStage == 0 && t.sinceLastAdapt > 5:
		t.startupStage++
		t.adapt()
	case t.startupStage == 1 && t.sinceLastAdapt > 20:
		t.startupStage++
		t.adapt()
	case t.startupStage == 2 && t.sinceLastAdapt > 100:
		t.adapt()
	}
}

// adapt re-ranks the three most frequent codes observed since the last
// adaptation and picks whichever mode minimizes the total bits those
// frequencies would cost, then resets the counters.
func (t *codeTable) adapt() {
	var code1, code2, code3 code
	var count1, count2, count3 int
	total := 0

	for i, count := range t.stats {
		t.stats[i] = 0
		total += count

		switch {
		case count > count1:
			code3, count3 = code2, count2
			code2, count2 = code1, count1
			code1, count1 = code(i), count
		case count > count2:
			code3, count3 = code2, count2
			code2, count2 = code(i), count
		case count > count3:
			code3, count3 = code(i), count
		}
	}

	mode1Size := total * 5
	mode2Size := count1 + (total-count1)*6
	mode3Size := count1 + count2*2 + (total-count1-count2)*7
	mode4Size := count1 + count2*2 + count3*3 + (total-count1-count2-count3)*8

	minSize := mode1Size
	t.mode = 1
	if mode2Size < minSize {
		minSize, t.mode = mode2Size, 2
	}
	if mode3Size < minSize {
		minSize, t.mode = mode3Size, 3
	}
	if mode4Size < minSize {
		minSize, t.mode = mode4Size, 4
	}

	switch t.mode {
	case 2:
		t.mode2Code = code1
	case 3:
		t.mode3Code1, t.mode3Code2 = code1, code2
	case 4:
		t.mode4Code1, t.mode4Code2, t.mode4Code3 = code1, code2, code3
	}

	t.sinceLastAdapt = 0
}
