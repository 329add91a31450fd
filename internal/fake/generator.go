// Package fake provides utilities for seeding the registry with random matches for development.
package fake

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/matchlist/internal/registry"
)

// GenerateData registers count randomized matches in reg and returns how many were accepted.
// It simulates various hosts, maps, ports and lobby sizes.
func GenerateData(reg *registry.Registry, count int) int {
	hosts := []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Mallory", "Trent", "Peggy"}
	maps := []string{"de_dust2", "cs_office", "de_inferno", "de_nuke", "de_mirage", "aim_map"}
	lobbies := []int{2, 4, 8, 10, 16}

	// Cache for address reuse
	var proxies []string

	accepted := 0
	for i := 0; i < count; i++ {
		var proxy string

		// 20% chance for reuse proxy address
		if len(proxies) > 0 && rand.Float32() < 0.2 {
			proxy = proxies[rand.Intn(len(proxies))]
		} else {
			proxy = fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255))
			proxies = append(proxies, proxy)
		}

		_, err := reg.Register(registry.Registration{
			HostName:     fmt.Sprintf("%s #%d", hosts[rand.Intn(len(hosts))], rand.Intn(1000)),
			ProxyAddress: proxy,
			ProxyPort:    strconv.Itoa(7000 + rand.Intn(1000)),
			Map:          maps[rand.Intn(len(maps))],
			MaxPlayers:   strconv.Itoa(lobbies[rand.Intn(len(lobbies))]),
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake match")
			continue
		}
		accepted++
	}

	log.Info().Int("count", accepted).Msg("Fake matches generated")

	return accepted
}
