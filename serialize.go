package aam

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model file errors.
var (
	ErrInvalidModelMagic       = errors.New("invalid model magic: expected 'AAMF'")
	ErrUnsupportedModelVersion = errors.New("unsupported model version")
)

const (
	modelMagic   = "AAMF"
	modelVersion = uint16(1)

	// maxModelRecords bounds the triangle and sample counts read from a header.
	maxModelRecords = 1 << 24
	// recordChunk is the number of records decoded per read.
	recordChunk = 4096
)

// header is the fixed size part of a model file.
type header struct {
	Magic     [4]byte
	Version   uint16
	Channels  uint32
	Pose      [6]float64
	Triangles uint32
	Samples   uint32
}

type triangleRecord struct {
	A, B, C int32
}

type sampleRecord struct {
	Triangle    int32
	Alpha, Beta float64
}

// Save writes the model in its binary representation. Multi-byte values are
// little endian; mean vectors and mode matrices use gonum's binary encoding.
func (m *ActiveAppearanceModel) Save(w io.Writer) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)

	h := header{
		Version:   modelVersion,
		Channels:  uint32(m.Channels),
		Pose:      [6]float64{m.Pose.A, m.Pose.B, m.Pose.C, m.Pose.D, m.Pose.TX, m.Pose.TY},
		Triangles: uint32(len(m.Triangles)),
		Samples:   uint32(len(m.Samples)),
	}
	copy(h.Magic[:], modelMagic)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "writing header")
	}

	tris := make([]triangleRecord, len(m.Triangles))
	for i, t := range m.Triangles {
		tris[i] = triangleRecord{int32(t[0]), int32(t[1]), int32(t[2])}
	}
	if err := binary.Write(bw, binary.LittleEndian, tris); err != nil {
		return errors.Wrap(err, "writing triangles")
	}

	samples := make([]sampleRecord, len(m.Samples))
	for i, s := range m.Samples {
		samples[i] = sampleRecord{int32(s.Triangle), s.Alpha, s.Beta}
	}
	if err := binary.Write(bw, binary.LittleEndian, samples); err != nil {
		return errors.Wrap(err, "writing samples")
	}

	if err := writeLinearModel(bw, &m.Shape); err != nil {
		return errors.Wrap(err, "writing shape model")
	}
	if err := writeLinearModel(bw, &m.Appearance); err != nil {
		return errors.Wrap(err, "writing appearance model")
	}
	return bw.Flush()
}

func writeLinearModel(w io.Writer, l *LinearModel) error {
	if _, err := mat.NewVecDense(len(l.Mean), l.Mean).MarshalBinaryTo(w); err != nil {
		return err
	}
	modes := uint32(l.NumModes())
	if err := binary.Write(w, binary.LittleEndian, modes); err != nil {
		return err
	}
	if modes == 0 {
		return nil
	}
	if _, err := l.Modes.MarshalBinaryTo(w); err != nil {
		return err
	}
	_, err := mat.NewVecDense(len(l.Weights), l.Weights).MarshalBinaryTo(w)
	return err
}

// Load reads a model written by Save and validates it.
func Load(r io.Reader) (*ActiveAppearanceModel, error) {
	br := bufio.NewReader(r)

	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	if string(h.Magic[:]) != modelMagic {
		return nil, ErrInvalidModelMagic
	}
	if h.Version != modelVersion {
		return nil, errors.Wrapf(ErrUnsupportedModelVersion, "version %d", h.Version)
	}

	m := &ActiveAppearanceModel{
		Channels: int(h.Channels),
		Pose: Affine{
			A: h.Pose[0], B: h.Pose[1],
			C: h.Pose[2], D: h.Pose[3],
			TX: h.Pose[4], TY: h.Pose[5],
		},
	}

	if h.Triangles > maxModelRecords || h.Samples > maxModelRecords {
		return nil, errors.Wrapf(ErrInvalidModel, "header declares %d triangles and %d samples",
			h.Triangles, h.Samples)
	}

	tris, err := readRecords[triangleRecord](br, h.Triangles)
	if err != nil {
		return nil, errors.Wrap(err, "reading triangles")
	}
	m.Triangles = make([]Triangle, len(tris))
	for i, t := range tris {
		m.Triangles[i] = Triangle{int(t.A), int(t.B), int(t.C)}
	}

	samples, err := readRecords[sampleRecord](br, h.Samples)
	if err != nil {
		return nil, errors.Wrap(err, "reading samples")
	}
	m.Samples = make([]Sample, len(samples))
	for i, s := range samples {
		m.Samples[i] = Sample{Triangle: int(s.Triangle), Alpha: s.Alpha, Beta: s.Beta}
	}

	if m.Shape, err = readLinearModel(br); err != nil {
		return nil, errors.Wrap(err, "reading shape model")
	}
	if m.Appearance, err = readLinearModel(br); err != nil {
		return nil, errors.Wrap(err, "reading appearance model")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// readRecords decodes n fixed size records in chunks, so that a truncated
// stream fails before the whole declared count is allocated.
func readRecords[T any](r io.Reader, n uint32) ([]T, error) {
	out := make([]T, 0, min(n, recordChunk))
	buf := make([]T, recordChunk)
	for remaining := int(n); remaining > 0; {
		k := min(remaining, recordChunk)
		if err := binary.Read(r, binary.LittleEndian, buf[:k]); err != nil {
			return nil, err
		}
		out = append(out, buf[:k]...)
		remaining -= k
	}
	return out, nil
}

func readLinearModel(r io.Reader) (LinearModel, error) {
	var l LinearModel

	var mean mat.VecDense
	if _, err := mean.UnmarshalBinaryFrom(r); err != nil {
		return l, err
	}
	l.Mean = mat.Col(nil, 0, &mean)

	var modes uint32
	if err := binary.Read(r, binary.LittleEndian, &modes); err != nil {
		return l, err
	}
	if modes == 0 {
		return l, nil
	}

	basis := new(mat.Dense)
	if _, err := basis.UnmarshalBinaryFrom(r); err != nil {
		return l, err
	}
	var weights mat.VecDense
	if _, err := weights.UnmarshalBinaryFrom(r); err != nil {
		return l, err
	}
	l.Modes = basis
	l.Weights = mat.Col(nil, 0, &weights)
	return l, nil
}

// SaveFile writes the model to path.
func (m *ActiveAppearanceModel) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating model file")
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a model from path.
func LoadFile(path string) (*ActiveAppearanceModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening model file")
	}
	defer f.Close()
	return Load(f)
}
