package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/paddle_helm/internal/config"
	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// RunSensorProducer opens the wireless receiver's serial port, decodes its
// line protocol into SensorSamples, and publishes them as JSON to MQTT.
// The receiver emits one CSV line per reading: "gx,gy,gz,ay".
func RunSensorProducer() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSensor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	serialOpts := serial.OpenOptions{
		PortName:              cfg.SensorSerialPort,
		BaudRate:              uint(cfg.SensorBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("producer: serial port opened on %s at %d baud", cfg.SensorSerialPort, cfg.SensorBaudRate)

	reader := bufio.NewReader(port)
	var malformed uint64

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("producer: serial read error: %v", err)
			return err
		}

		s, ok := parseSensorLine(strings.TrimSpace(line))
		if !ok {
			// Partial lines are normal right after opening the port.
			malformed++
			if malformed%100 == 1 {
				log.Printf("producer: %d malformed lines so far (last: %q)", malformed, line)
			}
			continue
		}

		payload, err := json.Marshal(s)
		if err != nil {
			log.Printf("producer: sample marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicSamples, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("producer: sample publish error: %v", token.Error())
		}
	}
}

// parseSensorLine decodes one "gx,gy,gz,ay" line. The receiver timestamps
// nothing, so arrival time is the sample time.
func parseSensorLine(line string) (sample.SensorSample, bool) {
	if line == "" {
		return sample.SensorSample{}, false
	}
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return sample.SensorSample{}, false
	}
	gx, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	gy, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	gz, err3 := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	ay, err4 := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 32)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return sample.SensorSample{}, false
	}
	return sample.SensorSample{
		Gyro:   sample.Vec3{X: gx, Y: gy, Z: gz},
		AccelY: int32(ay),
		T:      time.Now(),
	}, true
}
