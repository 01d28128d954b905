package media

import "math/rand/v2"

// samplePixels returns up to maxPixels distinct rgb24 pixels from frame, in
// no particular order.
func samplePixels(frame []byte, maxPixels int) []byte {
	indices := sampleIndices(len(frame)/3, maxPixels)

	out := make([]byte, 0, len(indices)*3)
	for _, i := range indices {
		out = append(out, frame[i*3:i*3+3]...)
	}

	return out
}

// sampleIndices draws k distinct integers from [0, n) with Floyd's algorithm,
// then shuffles them.
func sampleIndices(n, k int) []int {
	if n <= 0 || k <= 0 {
		return nil
	}
	if k >= n {
		return rand.Perm(n)
	}

	seen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rand.IntN(j + 1)
		if _, dup := seen[t]; dup {
			t = j
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	rand.Shuffle(len(out), func(a, b int) {
		out[a], out[b] = out[b], out[a]
	})

	return out
}
