// Package discovery finds Home Assistant instances on the local network.
//
// Home Assistant advertises itself over multicast DNS as a
// "_home-assistant._tcp" service. The TXT record carries the instance
// name, its UUID, the running version and the URLs it can be reached at.
//
//	instances, err := discovery.ScanForInstances(5 * time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, inst := range instances {
//	    fmt.Printf("%s (%s) at %s\n", inst.Name, inst.Version, inst.URL())
//	}
//
// Discovery requires multicast on the network interface and UDP port 5353
// open in the local firewall.
package discovery
