package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassThruLayer(t *testing.T) {
	t.Run("Name returns PassThru", func(t *testing.T) {
		pt := PassThruLayer{}

		expectedName := "PassThru"
		actualName := pt.Name()

		assert.Equal(t, expectedName, actualName)
	})

	t.Run("Commander returns the commander it was given", func(t *testing.T) {
		commander := &MockCommander{}

		pt := PassThruLayer{}

		actualResult := pt.Commander(Maintain, commander)

		assert.Equal(t, commander, actualResult)
	})
}

func TestPassThruStack(t *testing.T) {
	t.Run("Layers returns a list of layers, with just one", func(t *testing.T) {
		ps := PassThruStack{}

		expectedLayer := []string{"PassThru"}
		actualLayer := ps.Layers()

		assert.Equal(t, expectedLayer, actualLayer)
	})

	t.Run("Lookup returns a pass thru layer", func(t *testing.T) {
		ps := PassThruStack{}

		expectedLayer := PassThruLayer{}
		actualLayer := ps.Lookup("anything")

		assert.Equal(t, expectedLayer, actualLayer)
	})
}
