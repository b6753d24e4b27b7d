package villagers

import (
	"fmt"
	"math/rand"
)

var firstNames = []string{
	"Aiden", "Bela", "Clara", "Doran", "Eliza", "Finn", "Greta", "Hilda",
	"Ivan", "Julia", "Kai", "Lily", "Milo", "Nina", "Otto", "Petra",
	"Quinn", "Rosa", "Sven", "Tilly", "Ulric", "Vera", "Wren", "Xander",
	"Yara", "Zeke",
}

var lastNames = []string{
	"Smith", "Miller", "Fisher", "Baker", "Cooper", "Fletcher", "Thatcher",
	"Wood", "Stone", "Field", "Hill", "Brook", "River", "Dale", "Ford",
	"Green", "White", "Black", "Brown", "Gray", "Reed", "Swift", "Strong",
}

// RandomName generates a villager display name.
func RandomName(rng *rand.Rand) string {
	return fmt.Sprintf("%s %s", firstNames[rng.Intn(len(firstNames))], lastNames[rng.Intn(len(lastNames))])
}
