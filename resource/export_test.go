package resource

// JavaDoubles returns the first n values of java.util.Random(seed).nextDouble().
func JavaDoubles(seed int64, n int) []float64 {
	rng := newJavaRandom(seed)
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.nextDouble()
	}
	return out
}

// ExhaustHandles moves both stores to their last handle.
func ExhaustHandles(textures *TextureStore, meshes *MeshStore) {
	textures.handles.next = 1<<64 - 1
	meshes.handles.next = 1<<64 - 1
}
