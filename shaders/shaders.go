// Package shaders holds the GLSL sources of the mesh program. The compiled
// .spv files are loaded from this directory, embedded with packr, or packed
// into a kar archive with cmd/kar.
package shaders

//go:generate glslc mesh.vert -o mesh.vert.spv
//go:generate glslc mesh.frag -o mesh.frag.spv
