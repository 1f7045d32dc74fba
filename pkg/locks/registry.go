// Package locks provee mutexes por clave con tabla acotada.
//
// El registro es una tabla fija de shards indexada por hash FNV-1a de la clave:
// nunca crece aunque aparezcan productos o pedidos nuevos. Dos claves que
// colisionan en el mismo shard solo comparten contención, jamás pierden la
// exclusión mutua. Los locks son locales al proceso: escalar horizontalmente
// el servicio invalida la garantía (limitación documentada, no silenciosa).
package locks

import (
	"hash/fnv"
	"sync"
)

const shardCount = 256

// Registry tabla acotada de mutexes por clave.
type Registry struct {
	shards [shardCount]sync.Mutex
}

// NewRegistry construye un registro vacío.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &r.shards[h.Sum32()%shardCount]
}

// Lock adquiere el mutex asociado a la clave.
func (r *Registry) Lock(key string) {
	r.shard(key).Lock()
}

// Unlock libera el mutex asociado a la clave.
func (r *Registry) Unlock(key string) {
	r.shard(key).Unlock()
}
