package registry

// lineSpec describes a subway line in the built-in catalog.
type lineSpec struct {
	Name     string
	Color    string
	Group    string
	Division string
}

// catalogLines is ordered; a line's ID is its 1-based position.
var catalogLines = []lineSpec{
	{"1", "#EE352E", "Broadway-Seventh Avenue", "IRT"},
	{"2", "#EE352E", "Broadway-Seventh Avenue", "IRT"},
	{"3", "#EE352E", "Broadway-Seventh Avenue", "IRT"},
	{"4", "#00933C", "Lexington Avenue", "IRT"},
	{"5", "#00933C", "Lexington Avenue", "IRT"},
	{"6", "#00933C", "Lexington Avenue", "IRT"},
	{"7", "#B933AD", "Flushing", "IRT"},
	{"A", "#0039A6", "Eighth Avenue", "IND"},
	{"B", "#FF6319", "Sixth Avenue", "IND"},
	{"C", "#0039A6", "Eighth Avenue", "IND"},
	{"D", "#FF6319", "Sixth Avenue", "IND"},
	{"E", "#0039A6", "Eighth Avenue", "IND"},
	{"F", "#FF6319", "Sixth Avenue", "IND"},
	{"G", "#6CBE45", "Crosstown", "IND"},
	{"J", "#996633", "Nassau Street", "BMT"},
	{"L", "#A7A9AC", "Canarsie", "BMT"},
	{"M", "#FF6319", "Sixth Avenue", "IND"},
	{"N", "#FCCC0A", "Broadway", "BMT"},
	{"Q", "#FCCC0A", "Broadway", "BMT"},
	{"R", "#FCCC0A", "Broadway", "BMT"},
	{"S", "#808183", "Shuttle", "IRT"},
	{"W", "#FCCC0A", "Broadway", "BMT"},
	{"Z", "#996633", "Nassau Street", "BMT"},
	{"SIR", "#1D2F6F", "Staten Island Railway", "SIR"},
}

// Boroughs served by the network.
var Boroughs = []string{"Manhattan", "Brooklyn", "Queens", "Bronx", "Staten Island"}

type stationSpec struct {
	Name    string
	Borough string
	Lat     float64
	Lon     float64
	Lines   string
}

// majorStations are real, high-traffic complexes. They always exist in the
// registry and get the highest popularity weights.
var majorStations = []stationSpec{
	{"Times Square-42nd St", "Manhattan", 40.756, -73.987, "A,C,E,N,Q,R,S,W,1,2,3,7"},
	{"Grand Central-42nd St", "Manhattan", 40.752, -73.977, "4,5,6,7,S"},
	{"Penn Station", "Manhattan", 40.750, -73.992, "1,2,3,A,C,E"},
	{"Union Square-14th St", "Manhattan", 40.735, -73.990, "L,N,Q,R,W,4,5,6"},
	{"Fulton Street", "Manhattan", 40.710, -74.008, "A,C,J,Z,2,3,4,5"},
	{"Herald Square-34th St", "Manhattan", 40.749, -73.988, "B,D,F,M,N,Q,R,W"},
	{"Lexington Av-59th St", "Manhattan", 40.762, -73.967, "4,5,6,N,R,W"},
	{"Columbus Circle-59th St", "Manhattan", 40.768, -73.982, "A,B,C,D,1"},
	{"Canal Street", "Manhattan", 40.720, -74.000, "A,C,E,J,Z,N,Q,R,W,6"},
	{"Chambers Street", "Manhattan", 40.715, -74.009, "A,C,1,2,3"},
	{"Atlantic Av-Barclays", "Brooklyn", 40.684, -73.978, "B,D,N,Q,R,2,3,4,5"},
	{"Jay Street-MetroTech", "Brooklyn", 40.692, -73.986, "A,C,F,R"},
	{"Bedford Av", "Brooklyn", 40.717, -73.957, "L"},
	{"Williamsburg Bridge", "Brooklyn", 40.714, -73.958, "J,M,Z"},
	{"DeKalb Av", "Brooklyn", 40.691, -73.982, "B,D,N,Q,R"},
	{"Borough Hall", "Brooklyn", 40.693, -73.990, "2,3,4,5,R"},
	{"Flushing-Main St", "Queens", 40.759, -73.830, "7"},
	{"Jackson Heights-Roosevelt", "Queens", 40.746, -73.891, "E,F,M,R,7"},
	{"Jamaica-179th St", "Queens", 40.712, -73.784, "F"},
	{"Astoria-Ditmars Blvd", "Queens", 40.775, -73.912, "N,W"},
	{"Court Square", "Queens", 40.747, -73.946, "E,G,M,7"},
	{"Forest Hills-71st Av", "Queens", 40.722, -73.844, "E,F,M,R"},
	{"161st St-Yankee Stadium", "Bronx", 40.828, -73.926, "4,B,D"},
	{"3rd Ave-149th St", "Bronx", 40.816, -73.918, "2,5"},
	{"Pelham Parkway", "Bronx", 40.858, -73.867, "2,5"},
	{"Fordham Road", "Bronx", 40.861, -73.888, "4,B,D"},
	{"Kingsbridge Road", "Bronx", 40.867, -73.897, "4,B,D"},
	{"St George", "Staten Island", 40.644, -74.074, "SIR"},
}

// boroughBox bounds generated station coordinates.
type boroughBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	Lines          []string
}

var boroughBoxes = map[string]boroughBox{
	"Manhattan":     {40.70, 40.88, -74.02, -73.93, []string{"1", "2", "3", "4", "5", "6", "7", "A", "B", "C", "D", "E", "F", "J", "L", "M", "N", "Q", "R", "W", "Z"}},
	"Brooklyn":      {40.57, 40.74, -74.04, -73.86, []string{"2", "3", "4", "5", "A", "B", "C", "D", "F", "G", "J", "L", "M", "N", "Q", "R", "Z"}},
	"Queens":        {40.58, 40.80, -73.96, -73.72, []string{"7", "A", "E", "F", "G", "J", "M", "N", "R", "W", "Z"}},
	"Bronx":         {40.80, 40.90, -73.93, -73.80, []string{"1", "2", "4", "5", "6", "B", "D"}},
	"Staten Island": {40.50, 40.65, -74.25, -74.06, []string{"SIR"}},
}

var (
	streetTypes = []string{"Street", "Avenue", "Boulevard", "Road", "Place", "Parkway"}
	directions  = []string{"", "North", "South", "East", "West"}
	placeNames  = []string{
		"Nostrand", "Utica", "Kingston", "Franklin", "Church", "Bergen", "Carroll",
		"Smith", "Hoyt", "Myrtle", "Wilson", "Halsey", "Gates", "Marcy", "Hewes",
		"Lorimer", "Graham", "Grand", "Broadway", "Steinway", "Vernon", "Queens",
		"Woodhaven", "Lefferts", "Liberty", "Rockaway", "Beach", "Jerome", "Burnside",
		"Tremont", "Allerton", "Gun Hill", "Baychester", "Westchester", "Castle Hill",
		"Hunts Point", "Longwood", "Prospect", "Cortelyou", "Newkirk", "Avenue H",
		"Kings Highway", "Bay Ridge", "Fort Hamilton", "Tottenville", "Great Kills",
		"Eltingville", "Huguenot", "Annadale", "Clifton", "Grasmere", "Dongan Hills",
	}
)
