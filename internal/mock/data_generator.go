package mock

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/geo"
)

// kmPerDegree is the length of one degree of latitude.
const kmPerDegree = 111.32

// Names for realistic mock data
var firstNames = []string{
	"Lucia", "Hugo", "Martina", "Mateo", "Sofia", "Leo", "Julia", "Daniel",
	"Paula", "Pablo", "Valeria", "Alvaro", "Emma", "Manuel", "Noa", "Adrian",
	"Carla", "David", "Sara", "Mario", "Alba", "Diego", "Vega", "Marcos",
}

var lastNames = []string{
	"Garcia", "Rodriguez", "Gonzalez", "Fernandez", "Lopez", "Martinez",
	"Sanchez", "Perez", "Gomez", "Martin", "Jimenez", "Ruiz", "Hernandez",
	"Diaz", "Moreno", "Alvarez", "Romero", "Navarro",
}

// MockUser is a synthetic user wandering around the generator's centre.
// X and Y are its offsets from the centre in km, east and north.
type MockUser struct {
	User    *domain.User
	X, Y    float64
	Heading float64
}

// DataGenerator generates synthetic users and moves them in a random walk
// that never leaves SpreadKm of the centre.
type DataGenerator struct {
	rand     *rand.Rand
	centre   geo.Location
	spreadKm float64
	users    []*MockUser
}

// NewDataGenerator creates a generator. The same seed always yields the same
// users and walks.
func NewDataGenerator(seed int64, centre geo.Location, spreadKm float64) *DataGenerator {
	return &DataGenerator{
		rand:     rand.New(rand.NewSource(seed)),
		centre:   centre,
		spreadKm: spreadKm,
	}
}

// GenerateUser adds a user at a random point inside the spread.
func (g *DataGenerator) GenerateUser() *MockUser {
	first := firstNames[g.rand.Intn(len(firstNames))]
	last := lastNames[g.rand.Intn(len(lastNames))]
	id := fmt.Sprintf("sim-%04d", len(g.users)+1)

	// sqrt keeps the density uniform over the disc
	r := g.spreadKm * math.Sqrt(g.rand.Float64())
	theta := g.rand.Float64() * 2 * math.Pi

	u := &MockUser{
		User: &domain.User{
			ID:          id,
			Email:       fmt.Sprintf("%s.%s.%s@sim.venuechat.local", strings.ToLower(first), strings.ToLower(last), id),
			DisplayName: first + " " + last,
			Role:        domain.RoleUser,
		},
		X:       r * math.Cos(theta),
		Y:       r * math.Sin(theta),
		Heading: g.rand.Float64() * 2 * math.Pi,
	}
	g.users = append(g.users, u)
	return u
}

// GeneratePopulation adds n users.
func (g *DataGenerator) GeneratePopulation(n int) {
	for i := 0; i < n; i++ {
		g.GenerateUser()
	}
}

// Users returns all generated users.
func (g *DataGenerator) Users() []*MockUser {
	return g.users
}

// Location converts the offsets of u into coordinates.
func (g *DataGenerator) Location(u *MockUser) geo.Location {
	lat := g.centre.Latitude + u.Y/kmPerDegree
	lat = math.Max(-90, math.Min(90, lat))

	lng := g.centre.Longitude
	if c := math.Cos(geo.ToRadians(lat)); c > 1e-9 {
		lng += u.X / (kmPerDegree * c)
	}
	if lng > 180 {
		lng -= 360
	} else if lng < -180 {
		lng += 360
	}
	return geo.Location{Latitude: lat, Longitude: lng}
}

// Step moves every user up to stepKm. Headings drift a little each step; a
// user about to leave the spread turns back towards the centre instead.
func (g *DataGenerator) Step(stepKm float64) {
	if stepKm > g.spreadKm {
		stepKm = g.spreadKm
	}

	for _, u := range g.users {
		u.Heading += (g.rand.Float64() - 0.5) * math.Pi / 2
		dist := stepKm * g.rand.Float64()

		x := u.X + dist*math.Cos(u.Heading)
		y := u.Y + dist*math.Sin(u.Heading)
		if math.Hypot(x, y) > g.spreadKm {
			u.Heading = math.Atan2(-u.Y, -u.X)
			x = u.X + dist*math.Cos(u.Heading)
			y = u.Y + dist*math.Sin(u.Heading)
		}
		u.X, u.Y = x, y
	}
}
