package terra

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bounds is a WGS84 bounding box in degrees.
type Bounds struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Scanalyzer gantry to UTM zone 12N affine fit for the ua-mac field.
const (
	utmAX = 409012.2032
	utmBX = 0.009
	utmCX = -0.9986
	utmAY = 3659974.971
	utmBY = 1.0002
	utmCY = 0.0078

	utmZone = 12

	// stereoOffset is half the stereo baseline in metres along gantry x.
	stereoOffset = 0.17

	heightMagic = 1.64
	plantSlope  = 0.574
)

// GPSBounds computes left and right camera footprints from capture
// metadata: gantry position plus camera box offset gives the camera centre,
// the 2 m field of view is scaled to the corrected camera height, and the
// corners go through the gantry->UTM fit into latitude/longitude.
func GPSBounds(md Metadata) (left, right Bounds, err error) {
	gantry, err := md.Section("gantry_system_variable_metadata")
	if err != nil {
		return Bounds{}, Bounds{}, err
	}
	fixed, err := md.Section("sensor_fixed_metadata")
	if err != nil {
		return Bounds{}, Bounds{}, err
	}

	gx, err := floatField(gantry, "position x [m]")
	if err != nil {
		return Bounds{}, Bounds{}, err
	}
	gy, err := floatField(gantry, "position y [m]")
	if err != nil {
		return Bounds{}, Bounds{}, err
	}
	gz, err := floatField(gantry, "position z [m]")
	if err != nil {
		return Bounds{}, Bounds{}, err
	}

	cx, err := floatField(fixed, "location in camera box x [m]")
	if err != nil {
		return Bounds{}, Bounds{}, err
	}
	cy, err := floatField(fixed, "location in camera box y [m]")
	if err != nil {
		return Bounds{}, Bounds{}, err
	}
	cz := 0.0
	if _, ok := fixed["location in camera box z [m]"]; ok {
		if cz, err = floatField(fixed, "location in camera box z [m]"); err != nil {
			return Bounds{}, Bounds{}, err
		}
	}

	fovRaw, err := stringField(fixed, "field of view at 2m in x- y- direction [m]")
	if err != nil {
		return Bounds{}, Bounds{}, err
	}
	fovX, fovY, err := parseFOV(fovRaw)
	if err != nil {
		return Bounds{}, Bounds{}, err
	}

	camHeight := gz + cz
	fixedHeight := camHeight + heightMagic - plantSlope*camHeight
	fovX *= fixedHeight / 2
	fovY *= fixedHeight / 2

	centerX := gx + cx
	centerY := gy + cy

	left = footprint(centerX+stereoOffset, centerY, fovX, fovY)
	right = footprint(centerX-stereoOffset, centerY, fovX, fovY)
	return left, right, nil
}

// parseFOV reads "[1.857 1.246]" or "1.857, 1.246".
func parseFOV(raw string) (float64, float64, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '[' || r == ']' || r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("field of view %q: expected two values", raw)
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("field of view %q: %w", raw, err)
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("field of view %q: %w", raw, err)
	}
	return x, y, nil
}

// footprint maps the gantry-space rectangle to lat/lon. Gantry x grows
// north, gantry y grows west.
func footprint(x, y, fovX, fovY float64) Bounds {
	north := x + fovX/2
	south := x - fovX/2
	west := y + fovY/2
	east := y - fovY/2

	nwLat, nwLon := ScanalyzerToLatLon(north, west)
	seLat, seLon := ScanalyzerToLatLon(south, east)
	return Bounds{LatMin: seLat, LatMax: nwLat, LonMin: nwLon, LonMax: seLon}
}

// ScanalyzerToLatLon converts gantry metres to WGS84 degrees.
func ScanalyzerToLatLon(gx, gy float64) (lat, lon float64) {
	easting := utmAX + utmBX*gx + utmCX*gy
	northing := utmAY + utmBY*gx + utmCY*gy
	return utmToLatLon(easting, northing, utmZone)
}

// utmToLatLon inverts a northern-hemisphere WGS84 UTM coordinate.
func utmToLatLon(easting, northing float64, zone int) (float64, float64) {
	const (
		a  = 6378137.0
		f  = 1 / 298.257223563
		k0 = 0.9996
	)
	e2 := f * (2 - f)
	ep2 := e2 / (1 - e2)

	x := easting - 500000.0
	m := northing / k0
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1 := math.Sin(phi1)
	cos1 := math.Cos(phi1)
	tan1 := math.Tan(phi1)

	n1 := a / math.Sqrt(1-e2*sin1*sin1)
	t1 := tan1 * tan1
	c1 := ep2 * cos1 * cos1
	r1 := a * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := x / (n1 * k0)

	lat := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lon := (d - (1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cos1

	lon0 := float64((zone-1)*6-180+3) * math.Pi / 180
	return lat * 180 / math.Pi, (lon0 + lon) * 180 / math.Pi
}
