package workflow

import "math/rand/v2"

// Seed values are drawn from [1, 10^12).
const seedMax = 1_000_000_000_000

var seedInputNames = []string{"seed", "noise_seed"}

// RandomizeSeeds overwrites every named input called seed or noise_seed with
// an independently drawn random integer, so run-to-run variation comes from
// the engine side rather than whatever the template author left behind.
// Called once per job after all caller values are patched in.
func RandomizeSeeds(g Graph) {
	for _, node := range g {
		inputs, ok := node.Inputs()
		if !ok {
			continue
		}
		for _, name := range seedInputNames {
			if _, present := inputs[name]; present {
				inputs[name] = randomSeed()
			}
		}
	}
}

func randomSeed() int64 {
	return rand.Int64N(seedMax-1) + 1
}
