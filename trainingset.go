package aam

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Connection records the contour neighbours of one landmark.
type Connection struct {
	Path     int
	Type     int
	Point    int
	From, To int
}

// TrainingData is one annotated image. Shape holds landmark positions in pixels.
type TrainingData struct {
	Name     string
	Image    *Image
	Shape    Shape
	Contours []Connection
}

// TrainingSet is a collection of annotated images sharing the same landmark layout.
type TrainingSet []TrainingData

// Validate checks that every entry has an image and that all shapes have the
// same number of landmarks.
func (ts TrainingSet) Validate() error {
	if len(ts) == 0 {
		return errors.Wrap(ErrTooFewSamples, "empty training set")
	}
	n := ts[0].Shape.Len()
	for i, d := range ts {
		if err := d.Shape.Validate(); err != nil {
			return errors.Wrapf(err, "training shape %d (%s)", i, d.Name)
		}
		if d.Shape.Len() != n {
			return errors.Wrapf(ErrDimensionMismatch, "training shape %d (%s) has %d landmarks, expected %d",
				i, d.Name, d.Shape.Len(), n)
		}
		if d.Image == nil {
			return errors.Wrapf(ErrInvalidDimensions, "training shape %d (%s) has no image", i, d.Name)
		}
		if err := d.Image.validate(); err != nil {
			return errors.Wrapf(err, "training image %d (%s)", i, d.Name)
		}
	}
	return nil
}

// ParseASF reads an IMM face database annotation. Landmarks are returned in
// relative image coordinates, as stored in the file.
func ParseASF(r io.Reader) (Shape, []Connection, error) {
	var (
		shape    Shape
		contours []Connection
		expected = -1
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		switch {
		case len(fields) == 1 && expected < 0:
			n, err := strconv.Atoi(fields[0])
			if err != nil {
				// The image file name line.
				continue
			}
			expected = n
			shape = make(Shape, 0, 2*n)
		case len(fields) >= 7:
			var c Connection
			var x, y float64
			var err error
			ints := []*int{&c.Path, &c.Type}
			for i, p := range ints {
				if *p, err = strconv.Atoi(fields[i]); err != nil {
					return nil, nil, errors.Wrapf(err, "line %d", line)
				}
			}
			if x, err = strconv.ParseFloat(fields[2], 64); err != nil {
				return nil, nil, errors.Wrapf(err, "line %d", line)
			}
			if y, err = strconv.ParseFloat(fields[3], 64); err != nil {
				return nil, nil, errors.Wrapf(err, "line %d", line)
			}
			ints = []*int{&c.Point, &c.From, &c.To}
			for i, p := range ints {
				if *p, err = strconv.Atoi(fields[4+i]); err != nil {
					return nil, nil, errors.Wrapf(err, "line %d", line)
				}
			}
			shape = append(shape, x, y)
			contours = append(contours, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if expected >= 0 && shape.Len() != expected {
		return nil, nil, errors.Wrapf(ErrInvalidShape, "expected %d landmarks, found %d", expected, shape.Len())
	}
	if err := shape.Validate(); err != nil {
		return nil, nil, err
	}
	return shape, contours, nil
}

// LoadASFTrainingSet loads the %02d-%dm.jpg / .asf pairs of an IMM style
// directory. Person indices start at 1 and loading stops at the first person
// without any annotated image. Landmarks are scaled to pixel coordinates.
func LoadASFTrainingSet(dir string, channels int) (TrainingSet, error) {
	var ts TrainingSet
	for person := 1; ; person++ {
		found := 0
		for pose := 1; ; pose++ {
			name := filepath.Join(dir, fmt.Sprintf("%02d-%dm", person, pose))
			if _, err := os.Stat(name + ".asf"); errors.Is(err, os.ErrNotExist) {
				break
			}
			d, err := loadASFEntry(name, channels)
			if err != nil {
				return nil, errors.Wrapf(err, "loading %s", name)
			}
			ts = append(ts, *d)
			found++
		}
		if found == 0 {
			break
		}
	}
	if len(ts) == 0 {
		return nil, errors.Wrapf(ErrTooFewSamples, "no annotated images in %s", dir)
	}
	return ts, nil
}

func loadASFEntry(name string, channels int) (*TrainingData, error) {
	f, err := os.Open(name + ".asf")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	shape, contours, err := ParseASF(f)
	if err != nil {
		return nil, err
	}
	src, err := decodeImg(name + ".jpg")
	if err != nil {
		return nil, err
	}
	img, err := NewImageFromImage(src, channels)
	if err != nil {
		return nil, err
	}
	for i := 0; i < shape.Len(); i++ {
		x, y := shape.Point(i)
		shape.SetPoint(i, x*float64(img.Width), y*float64(img.Height))
	}
	return &TrainingData{
		Name:     filepath.Base(name),
		Image:    img,
		Shape:    shape,
		Contours: contours,
	}, nil
}
