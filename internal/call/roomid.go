package call

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Room ids are generated by the creating peer and shared out of band, so they
// have to survive being read aloud or typed: three words from distinct lists
// plus a short hex tail against collisions between independent creators.
var (
	idAdjectives = []string{
		"amber", "brisk", "calm", "dusky", "eager", "fuzzy", "gentle", "hazy",
		"ivory", "jolly", "keen", "lively", "mellow", "nimble", "quiet", "sunny",
	}
	idMaterials = []string{
		"agar", "basalt", "cobalt", "ethanol", "flint", "glass", "helium",
		"iodine", "krypton", "lithium", "marble", "neon", "osmium", "quartz",
		"radium", "silica",
	}
	idAnimals = []string{
		"axolotl", "beagle", "crane", "dingo", "ermine", "falcon", "gecko",
		"heron", "ibis", "jackdaw", "kestrel", "lemur", "marmot", "newt",
		"otter", "puffin",
	}
)

// NewRoomID returns a fresh shareable room id, e.g. "brisk-quartz-otter-7f3a".
func NewRoomID() string {
	tail := make([]byte, 2)
	rand.Read(tail)
	return fmt.Sprintf("%s-%s-%s-%s",
		idAdjectives[randomIndex(len(idAdjectives))],
		idMaterials[randomIndex(len(idMaterials))],
		idAnimals[randomIndex(len(idAnimals))],
		hex.EncodeToString(tail),
	)
}

// randomIndex returns a cryptographically secure random index for a slice of
// the given length.
func randomIndex(n int) int {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(i.Int64())
}
