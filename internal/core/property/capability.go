package property

// Capability is a cross-cutting trait a property type declares at Define time.
// Holders index attached properties by the capabilities of their type.
type Capability struct {
	name  string
	check func(Property) bool
}

// NewCapability declares a capability backed by interface I. Define rejects
// types that declare the capability without implementing I.
func NewCapability[I any](name string) *Capability {
	return &Capability{
		name: name,
		check: func(p Property) bool {
			_, ok := p.(I)
			return ok
		},
	}
}

func (c *Capability) Name() string { return c.name }

func (c *Capability) String() string { return c.name }

// ImplementedBy reports whether p satisfies the capability's interface.
func (c *Capability) ImplementedBy(p Property) bool { return c.check(p) }

// Ticker is implemented by properties that advance with the simulation.
type Ticker interface {
	Tick(dt float64) error
}

// Spawner is implemented by properties that keep external resources alive
// while their entity is spawned into the world.
type Spawner interface {
	OnSpawn() error
	OnDespawn() error
}

var (
	// Tickable properties are ticked once per simulation step.
	Tickable = NewCapability[Ticker]("tickable")
	// Spawnable properties follow their entity into and out of the world.
	Spawnable = NewCapability[Spawner]("spawnable")
	// Serializable is added automatically to every type with auto-saved members.
	Serializable = NewCapability[Property]("serializable")
)
