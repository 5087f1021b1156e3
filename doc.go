/*
Package aam implements two dimensional Active Appearance Models: a linear shape model
and a co-registered appearance model which can be fitted to a novel image with the
inverse compositional Gauss-Newton algorithm.

The package provides the building blocks (barycentric sampling over a triangulated mesh,
PCA, Procrustes alignment, affine warps), a trainer producing an ActiveAppearanceModel
from annotated images and a Matcher which fits the model to a target image.
It also ships a command line interface. To check the supported commands type:

	$ aam --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"context"
		"fmt"

		"github.com/esimov/aam"
	)

	func main() {
		model, err := aam.LoadFile("face.aam")
		if err != nil {
			// handle error
		}
		m, err := aam.NewMatcher(model, aam.Options{Strategy: aam.PoseAndShape})
		if err != nil {
			// handle error
		}
		if err := m.Init(img, aam.Affine{}, nil, nil); err != nil {
			// handle error
		}
		res, err := m.Run(context.Background(), 50)
		if err != nil {
			// handle error
		}
		fmt.Println(res.Pose, res.ShapeParams)
	}
*/
package aam
