package server

import (
	"sort"
	"strconv"
	"strings"

	"github.com/emberdb/ember/protocol"
	"github.com/emberdb/ember/storage"
)

// metersPerUnit maps the accepted distance units to meters
var metersPerUnit = map[string]float64{
	"m":  1,
	"km": 1000,
	"mi": 1609.34,
	"ft": 0.3048,
}

func (c *Client) handleGeoAdd(cmd *protocol.Command) {
	if len(cmd.Args) < 4 || (len(cmd.Args)-1)%3 != 0 {
		c.wrongArity("geoadd")
		return
	}

	key := string(cmd.Args[0])
	points := make([]storage.GeoPoint, 0, (len(cmd.Args)-1)/3)
	for i := 1; i < len(cmd.Args); i += 3 {
		lon, err1 := strconv.ParseFloat(string(cmd.Args[i]), 64)
		lat, err2 := strconv.ParseFloat(string(cmd.Args[i+1]), 64)
		if err1 != nil || err2 != nil {
			c.writeError("ERR value is not a valid float")
			return
		}
		if !storage.ValidateLongitude(lon) || !storage.ValidateLatitude(lat) {
			c.writeError("ERR invalid longitude,latitude pair " + string(cmd.Args[i]) + "," + string(cmd.Args[i+1]))
			return
		}
		points = append(points, storage.GeoPoint{
			Longitude: lon,
			Latitude:  lat,
			Member:    string(cmd.Args[i+2]),
		})
	}

	added, err := c.engine.GeoAdd(key, points...)
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(added)
}

func (c *Client) handleGeoPos(cmd *protocol.Command) {
	if len(cmd.Args) < 2 {
		c.wrongArity("geopos")
		return
	}

	members := make([]string, len(cmd.Args)-1)
	for i := 1; i < len(cmd.Args); i++ {
		members[i-1] = string(cmd.Args[i])
	}

	coords, err := c.engine.GeoPos(string(cmd.Args[0]), members...)
	if err != nil {
		c.writeStorageError(err)
		return
	}

	values := make([]protocol.Value, len(coords))
	for i, coord := range coords {
		if coord == nil {
			values[i] = protocol.NullArray()
			continue
		}
		values[i] = protocol.Array(
			protocol.BulkStringFromString(formatCoord(coord.Longitude)),
			protocol.BulkStringFromString(formatCoord(coord.Latitude)),
		)
	}
	c.writeValue(protocol.Array(values...))
}

func (c *Client) handleGeoDist(cmd *protocol.Command) {
	if len(cmd.Args) < 3 || len(cmd.Args) > 4 {
		c.wrongArity("geodist")
		return
	}

	unit := 1.0
	if len(cmd.Args) == 4 {
		u, ok := metersPerUnit[strings.ToLower(string(cmd.Args[3]))]
		if !ok {
			c.writeError("ERR unsupported unit provided. please use m, km, ft, mi")
			return
		}
		unit = u
	}

	dist, found, err := c.engine.GeoDist(string(cmd.Args[0]), string(cmd.Args[1]), string(cmd.Args[2]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	if !found {
		c.writeNull()
		return
	}

	c.writeBulkString([]byte(strconv.FormatFloat(dist/unit, 'f', 4, 64)))
}

func (c *Client) handleGeoSearch(cmd *protocol.Command) {
	if len(cmd.Args) < 4 {
		c.wrongArity("geosearch")
		return
	}

	key := string(cmd.Args[0])

	var query storage.GeoSearchQuery
	var haveFrom, haveBy bool
	var fromMember string
	var useMember bool
	var sortAsc, sortDesc bool
	var withCoord, withDist bool
	count := 0
	unitDiv := 1.0

	i := 1
	for i < len(cmd.Args) {
		switch strings.ToUpper(string(cmd.Args[i])) {
		case "FROMMEMBER":
			if i+1 >= len(cmd.Args) || haveFrom {
				c.writeError("ERR syntax error")
				return
			}
			fromMember = string(cmd.Args[i+1])
			useMember = true
			haveFrom = true
			i += 2

		case "FROMLONLAT":
			if i+2 >= len(cmd.Args) || haveFrom {
				c.writeError("ERR syntax error")
				return
			}
			lon, err1 := strconv.ParseFloat(string(cmd.Args[i+1]), 64)
			lat, err2 := strconv.ParseFloat(string(cmd.Args[i+2]), 64)
			if err1 != nil || err2 != nil {
				c.writeError("ERR value is not a valid float")
				return
			}
			query.Longitude = lon
			query.Latitude = lat
			haveFrom = true
			i += 3

		case "BYRADIUS":
			if i+2 >= len(cmd.Args) || haveBy {
				c.writeError("ERR syntax error")
				return
			}
			radius, err := strconv.ParseFloat(string(cmd.Args[i+1]), 64)
			if err != nil || radius < 0 {
				c.writeError("ERR value is not a valid float")
				return
			}
			unit, ok := metersPerUnit[strings.ToLower(string(cmd.Args[i+2]))]
			if !ok {
				c.writeError("ERR unsupported unit provided. please use m, km, ft, mi")
				return
			}
			query.ByRadius = true
			query.Radius = radius * unit
			unitDiv = unit
			haveBy = true
			i += 3

		case "BYBOX":
			if i+3 >= len(cmd.Args) || haveBy {
				c.writeError("ERR syntax error")
				return
			}
			width, err1 := strconv.ParseFloat(string(cmd.Args[i+1]), 64)
			height, err2 := strconv.ParseFloat(string(cmd.Args[i+2]), 64)
			if err1 != nil || err2 != nil || width < 0 || height < 0 {
				c.writeError("ERR value is not a valid float")
				return
			}
			unit, ok := metersPerUnit[strings.ToLower(string(cmd.Args[i+3]))]
			if !ok {
				c.writeError("ERR unsupported unit provided. please use m, km, ft, mi")
				return
			}
			query.Width = width * unit
			query.Height = height * unit
			unitDiv = unit
			haveBy = true
			i += 4

		case "ASC":
			sortAsc = true
			i++
		case "DESC":
			sortDesc = true
			i++
		case "COUNT":
			if i+1 >= len(cmd.Args) {
				c.writeError("ERR syntax error")
				return
			}
			n, err := strconv.Atoi(string(cmd.Args[i+1]))
			if err != nil || n <= 0 {
				c.writeError("ERR COUNT must be > 0")
				return
			}
			count = n
			i += 2
		case "WITHCOORD":
			withCoord = true
			i++
		case "WITHDIST":
			withDist = true
			i++
		default:
			c.writeError("ERR syntax error")
			return
		}
	}

	if !haveFrom || !haveBy || (sortAsc && sortDesc) {
		c.writeError("ERR syntax error")
		return
	}

	if useMember {
		coords, err := c.engine.GeoPos(key, fromMember)
		if err != nil {
			c.writeStorageError(err)
			return
		}
		if coords[0] == nil {
			c.writeError("ERR could not decode requested zset member")
			return
		}
		query.Longitude = coords[0].Longitude
		query.Latitude = coords[0].Latitude
	}

	results, err := c.engine.GeoSearch(key, query)
	if err != nil {
		c.writeStorageError(err)
		return
	}

	if sortAsc || sortDesc {
		sort.Slice(results, func(i, j int) bool {
			if sortDesc {
				return results[i].Dist > results[j].Dist
			}
			return results[i].Dist < results[j].Dist
		})
	}

	if count > 0 && len(results) > count {
		results = results[:count]
	}

	values := make([]protocol.Value, len(results))
	for i, r := range results {
		if !withCoord && !withDist {
			values[i] = protocol.BulkStringFromString(r.Member)
			continue
		}

		item := []protocol.Value{protocol.BulkStringFromString(r.Member)}
		if withDist {
			item = append(item, protocol.BulkStringFromString(strconv.FormatFloat(r.Dist/unitDiv, 'f', 4, 64)))
		}
		if withCoord {
			item = append(item, protocol.Array(
				protocol.BulkStringFromString(formatCoord(r.Longitude)),
				protocol.BulkStringFromString(formatCoord(r.Latitude)),
			))
		}
		values[i] = protocol.Array(item...)
	}
	c.writeValue(protocol.Array(values...))
}

// formatCoord renders a coordinate at the precision clients display
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 17, 64)
}
