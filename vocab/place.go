package vocab

func init() {
	register(&TypeSchema{
		Name:    "Place",
		URI:     as2("Place"),
		Extends: "Object",
		Entity:  true,
		Properties: []PropertySchema{
			{Singular: "Latitude", CompactName: "latitude", URI: as2("latitude"), Functional: true},
			{Singular: "Longitude", CompactName: "longitude", URI: as2("longitude"), Functional: true},
			{Singular: "Radius", CompactName: "radius", URI: as2("radius"), Functional: true},
			{Singular: "Altitude", CompactName: "altitude", URI: as2("altitude"), Functional: true},
			{Singular: "Units", CompactName: "units", URI: as2("units"), Functional: true},
		},
	})
}

// Place represents a physical or logical location, e.g. attached to a
// check-in Note.
type Place struct{ *Object }

func NewPlace() *Place { return &Place{&Object{NewEntity("Place")}} }

func (p *Place) GetLatitude() (float64, bool)  { return scalarFloat(p.first(as2("latitude"))) }
func (p *Place) SetLatitude(v float64)         { p.setFunctional(as2("latitude"), v) }
func (p *Place) GetLongitude() (float64, bool) { return scalarFloat(p.first(as2("longitude"))) }
func (p *Place) SetLongitude(v float64)        { p.setFunctional(as2("longitude"), v) }
func (p *Place) GetRadius() (float64, bool)    { return scalarFloat(p.first(as2("radius"))) }
func (p *Place) SetRadius(v float64)           { p.setFunctional(as2("radius"), v) }
func (p *Place) GetAltitude() (float64, bool)  { return scalarFloat(p.first(as2("altitude"))) }
func (p *Place) SetAltitude(v float64)         { p.setFunctional(as2("altitude"), v) }
func (p *Place) GetUnits() string              { return scalarString(p.first(as2("units"))) }
func (p *Place) SetUnits(v string)             { p.setFunctional(as2("units"), v) }
