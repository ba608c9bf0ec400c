package usecase

// IceCreamFact is one entry of the ${icecream} table
type IceCreamFact struct {
	Name string
	Fact string
}

// String renders the fact as it appears in chat
func (f IceCreamFact) String() string {
	return f.Name + " 🍨: " + f.Fact
}

var iceCreamFacts = []IceCreamFact{
	{"Vanilla", "Vanilla is the most sold ice cream flavor worldwide, and the beans come from an orchid that is pollinated by hand on most farms."},
	{"Chocolate", "Cocoa was added to frozen desserts in Naples in the late 1600s, well before the chocolate bar was invented."},
	{"Strawberry", "Strawberry ice cream is one of the three stripes of Neapolitan, a layered block sold in the US since the 1870s."},
	{"Pistachio", "The green color of pistachio ice cream is often added; ground pistachios alone give a pale beige-olive shade."},
	{"Mint Chocolate Chip", "Mint chocolate chip was created in 1973 for a competition to design a dish for Princess Anne's wedding."},
	{"Rocky Road", "Rocky Road appeared during the 1929 crash, and its name was a wink at the hard times ahead."},
	{"Stracciatella", "Stracciatella is made by drizzling melted chocolate into churning fior di latte so it shatters into flakes."},
	{"Matcha", "Matcha ice cream keeps its color best when the tea is whisked into the base after it has cooled."},
	{"Cookies and Cream", "Cookies and cream became a supermarket flavor in the early 1980s after several dairies claimed to invent it."},
	{"Butter Pecan", "Butter pecan relies on toasting the nuts in butter first, which keeps them crisp once frozen."},
	{"Sorbet", "Sorbet contains no dairy, so it melts faster and tastes colder than cream based ice cream at the same temperature."},
	{"Soft Serve", "Soft serve is held around -4°C and whipped with air, which is why it comes out of the machine so smooth."},
}

// IceCreamFacts returns the built-in fact table
func IceCreamFacts() []IceCreamFact {
	out := make([]IceCreamFact, len(iceCreamFacts))
	copy(out, iceCreamFacts)
	return out
}
