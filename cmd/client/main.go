package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type DeviceAuthRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

type envelope struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Method     string          `json:"method,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Permission string          `json:"permission,omitempty"`
}

const wavHeaderSize = 44

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "bridge server base URL")
	serial := flag.String("serial", "SN-DEV-001", "device serial number")
	secret := flag.String("secret", "dev-secret", "device secret")
	accessKey := flag.String("access-key", os.Getenv("ACRCLOUD_ACCESS_KEY"), "recognition access key")
	accessSecret := flag.String("access-secret", os.Getenv("ACRCLOUD_ACCESS_SECRET"), "recognition access secret")
	host := flag.String("host", os.Getenv("ACRCLOUD_HOST"), "recognition host")
	audioFile := flag.String("file", "sample_audio.wav", "16-bit PCM file to stream (.wav header is skipped)")
	sampleRate := flag.Int("rate", 8000, "sample rate of the audio file")
	channels := flag.Int("channels", 1, "channel count of the audio file")
	chunk := flag.Duration("chunk", 100*time.Millisecond, "audio sent per frame")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for a result")
	flag.Parse()

	// Step 1: Get authentication token
	token, deviceID, err := authenticateDevice(*serverURL, *serial, *secret)
	if err != nil {
		log.Fatalf("Failed to authenticate device: %v", err)
	}
	log.Printf("Authenticated device %s", deviceID)

	// Step 2: Connect to WebSocket with token
	u, err := url.Parse(*serverURL)
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"

	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		if resp != nil {
			log.Fatalf("WebSocket connection failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to %s", u.String())

	replies := make(chan envelope, 16)
	results := make(chan string, 1)
	go readMessages(conn, replies, results)

	// Step 3: set up the recognizer and start listening
	if err := callAndWait(conn, replies, "1", "setUp", map[string]interface{}{
		"accessKey":    *accessKey,
		"accessSecret": *accessSecret,
		"host":         *host,
		"sampleRate":   *sampleRate,
		"channels":     *channels,
	}); err != nil {
		log.Fatalf("setUp failed: %v", err)
	}
	if err := callAndWait(conn, replies, "2", "listen", nil); err != nil {
		log.Fatalf("listen failed: %v", err)
	}

	// Step 4: stream audio until a result arrives
	audio, err := os.ReadFile(*audioFile)
	if err != nil {
		log.Fatalf("Failed to read audio file: %v", err)
	}
	if strings.HasSuffix(strings.ToLower(*audioFile), ".wav") && len(audio) > wavHeaderSize {
		audio = audio[wavHeaderSize:]
	}
	go streamAudio(conn, audio, *sampleRate, *channels, *chunk)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case result := <-results:
		fmt.Println(result)
	case <-time.After(*timeout):
		log.Printf("No result within %s, cancelling", *timeout)
		callAndWait(conn, replies, "3", "cancel", nil)
	case <-interrupt:
		log.Println("Interrupted")
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func authenticateDevice(serverURL, serial, secret string) (string, string, error) {
	reqBody, _ := json.Marshal(DeviceAuthRequest{SerialNumber: serial, SecretKey: secret})

	resp, err := http.Post(serverURL+"/api/v1/device/auth", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var authResp DeviceAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	return authResp.Token, authResp.DeviceID, nil
}

// readMessages prints server envelopes, answers permission requests and
// routes replies and results to the main goroutine.
func readMessages(conn *websocket.Conn, replies chan<- envelope, results chan<- string) {
	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("read: %v", err)
			close(replies)
			return
		}

		switch msg.Type {
		case "permission_request":
			log.Printf("Granting %s permission", msg.Permission)
			conn.WriteJSON(map[string]interface{}{"type": "permission", "granted": true})
		case "event":
			if msg.Method == "volume" {
				log.Printf("volume %s", string(msg.Arguments))
				continue
			}
			var payload string
			json.Unmarshal(msg.Arguments, &payload)
			select {
			case results <- payload:
			default:
			}
		case "reply", "error", "not_implemented":
			replies <- msg
		default:
			log.Printf("received %s", msg.Type)
		}
	}
}

func callAndWait(conn *websocket.Conn, replies <-chan envelope, id, method string, args map[string]interface{}) error {
	if err := conn.WriteJSON(map[string]interface{}{
		"type":      "call",
		"id":        id,
		"method":    method,
		"arguments": args,
	}); err != nil {
		return err
	}

	for {
		select {
		case reply, ok := <-replies:
			if !ok {
				return fmt.Errorf("connection closed")
			}
			if reply.ID != id {
				continue
			}
			switch reply.Type {
			case "error":
				return fmt.Errorf("%s: %s", reply.ErrorCode, reply.Message)
			case "not_implemented":
				return fmt.Errorf("%s is not implemented", method)
			}
			log.Printf("%s -> %s", method, string(reply.Result))
			return nil
		case <-time.After(30 * time.Second):
			return fmt.Errorf("timed out waiting for %s", method)
		}
	}
}

// streamAudio sends the audio in real time, one chunk per frame
func streamAudio(conn *websocket.Conn, audio []byte, sampleRate, channels int, chunk time.Duration) {
	chunkSize := int(chunk.Seconds()*float64(sampleRate)) * channels * 2
	if chunkSize <= 0 {
		chunkSize = 1024
	}

	ticker := time.NewTicker(chunk)
	defer ticker.Stop()

	for start := 0; start < len(audio); start += chunkSize {
		end := start + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[start:end]); err != nil {
			log.Printf("write: %v", err)
			return
		}
		<-ticker.C
	}
	log.Printf("Finished streaming %d bytes", len(audio))
}
