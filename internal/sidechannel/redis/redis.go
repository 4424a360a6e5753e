// Package redis is the optional external side channel spec.md names for
// sharing Charging Station connection state and delivering server-initiated
// Calls across process boundaries — useful once the central system runs
// behind a load balancer with more than one instance, where a Call destined
// for a session owned by a different instance has to hop over something
// other than an in-process map.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connectionKeyPrefix = "ocpp:conn:"
	deliveryChannel     = "ocpp:deliver"
	connectionTTL       = 2 * time.Minute
)

// SideChannel wraps a redis.Client with the two operations the central
// system needs: recording which process instance owns a Charging Station's
// live connection, and publishing a message for whichever instance owns it
// to deliver.
type SideChannel struct {
	client     *redis.Client
	instanceID string
}

// New connects to addr/db and tags every record this process writes with
// instanceID, so a subscriber can tell whether a delivery request is meant
// for it.
func New(addr string, db int, instanceID string) *SideChannel {
	return &SideChannel{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		instanceID: instanceID,
	}
}

// Close releases the underlying connection pool.
func (s *SideChannel) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity at startup, the way a readiness check would.
func (s *SideChannel) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// RegisterConnection records that this instance owns chargingStationID's
// live connection, refreshed periodically by the caller to outlive
// connectionTTL for as long as the session stays open.
func (s *SideChannel) RegisterConnection(ctx context.Context, chargingStationID string) error {
	return s.client.Set(ctx, connectionKeyPrefix+chargingStationID, s.instanceID, connectionTTL).Err()
}

// UnregisterConnection removes the ownership record on disconnect.
func (s *SideChannel) UnregisterConnection(ctx context.Context, chargingStationID string) error {
	return s.client.Del(ctx, connectionKeyPrefix+chargingStationID).Err()
}

// OwnerInstance returns which instance currently owns chargingStationID's
// connection, if any.
func (s *SideChannel) OwnerInstance(ctx context.Context, chargingStationID string) (string, bool, error) {
	v, err := s.client.Get(ctx, connectionKeyPrefix+chargingStationID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sidechannel: looking up owner: %w", err)
	}
	return v, true, nil
}

// deliveryRequest is published on deliveryChannel when one instance needs
// another to push a server-initiated Call out over a connection it owns.
type deliveryRequest struct {
	TargetInstance     string `json:"target_instance"`
	ChargingStationID  string `json:"charging_station_id"`
	Text               string `json:"text"`
}

// PublishDelivery asks targetInstance to deliver text to chargingStationID.
func (s *SideChannel) PublishDelivery(ctx context.Context, targetInstance, chargingStationID string, text []byte) error {
	payload, err := json.Marshal(deliveryRequest{
		TargetInstance:    targetInstance,
		ChargingStationID: chargingStationID,
		Text:              string(text),
	})
	if err != nil {
		return fmt.Errorf("sidechannel: marshaling delivery request: %w", err)
	}
	return s.client.Publish(ctx, deliveryChannel, payload).Err()
}

func unmarshalDelivery(payload string) (deliveryRequest, error) {
	var req deliveryRequest
	err := json.Unmarshal([]byte(payload), &req)
	return req, err
}

// Subscribe listens for delivery requests targeting this instance and
// invokes handle for each. Blocks until ctx is cancelled.
func (s *SideChannel) Subscribe(ctx context.Context, handle func(chargingStationID string, text []byte)) error {
	sub := s.client.Subscribe(ctx, deliveryChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			req, err := unmarshalDelivery(msg.Payload)
			if err != nil || req.TargetInstance != s.instanceID {
				continue
			}
			handle(req.ChargingStationID, []byte(req.Text))
		}
	}
}
