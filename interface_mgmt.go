package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	url2 "net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	gorillamux "github.com/gorilla/mux"
	"github.com/salushome/controller/config"
	"github.com/salushome/controller/interface/converters/exporter"
	"github.com/salushome/controller/interface/converters/invoker"
	"github.com/salushome/controller/interface/http/auth"
	"github.com/salushome/controller/interface/http/auth/external"
	"github.com/salushome/controller/interface/http/auth/jwt"
	"github.com/salushome/controller/interface/http/auth/null"
	"github.com/salushome/controller/interface/http/metrics"
	"github.com/salushome/controller/interface/http/pprof"
	"github.com/salushome/controller/interface/http/v1"
	"github.com/salushome/controller/interface/mqtt"
	"github.com/salushome/controller/layers"
	"github.com/salushome/controller/state"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
)

type StartedInterface struct {
	Name     string
	Shutdown func() error
}

const DefaultMQTTEventDuration = 1 * time.Second

const DefaultSystemIdentifier = "salus-controller"
const DefaultTokenDuration = 24 * time.Hour

func loadInterfaceConfigurations(dir string) ([]config.InterfaceConfig, error) {
	if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to ensure interface configuration directory exists: %w", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory listing for interface configurations: %w", err)
	}

	var retCfgs []config.InterfaceConfig

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		fullPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read interface configuration file '%s': %w", fullPath, err)
		}

		cfg := config.InterfaceConfig{
			Name: strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
		}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse interface configuration file '%s': %w", fullPath, err)
		}

		retCfgs = append(retCfgs, cfg)
	}

	return retCfgs, nil
}

func startInterfaces(cfgs []config.InterfaceConfig, mapper state.GatewayMapper, o *state.DeviceOrganiser, eventbus state.EventSubscriber, directories Directories, stack layers.OutputStack, l logwrap.Logger) ([]StartedInterface, error) {
	var retIfs []StartedInterface

	for _, cfg := range cfgs {
		dataDir := filepath.Join(directories.Data, "interfaces", cfg.Name)

		if err := os.MkdirAll(dataDir, DefaultDirectoryPermissions); err != nil {
			return nil, fmt.Errorf("failed to create interface data directory '%s': %w", dataDir, err)
		}

		if shutdown, err := startInterface(cfg, mapper, o, eventbus, stack, l); err != nil {
			return nil, fmt.Errorf("failed to start interface '%s': %w", cfg.Name, err)
		} else {
			retIfs = append(retIfs, StartedInterface{
				Name:     cfg.Name,
				Shutdown: shutdown,
			})
		}
	}

	return retIfs, nil
}

func startInterface(cfg config.InterfaceConfig, mapper state.GatewayMapper, o *state.DeviceOrganiser, eventbus state.EventSubscriber, stack layers.OutputStack, l logwrap.Logger) (func() error, error) {
	wl := logwrap.New(nest.Wrap(l))
	wl.AddOptionsToLogger(logwrap.Datum("interface", cfg.Name))

	switch iCfg := cfg.Config.(type) {
	case *config.HTTPInterfaceConfig:
		wl.AddOptionsToLogger(logwrap.Source("http"))
		return startHTTPInterface(*iCfg, mapper, o, eventbus, stack, wl)
	case *config.MQTTInterfaceConfig:
		wl.AddOptionsToLogger(logwrap.Source("mqtt"))
		return startMQTTInterface(*iCfg, mapper, o, eventbus, stack, wl)
	default:
		return nil, fmt.Errorf("unknown interface type loaded: %s", cfg.Type)
	}
}

func constructAuthenticationProvider(cfg *config.HTTPAuthConfig) (auth.AuthenticationProvider, error) {
	if cfg == nil {
		return null.Authenticator{}, nil
	}

	switch cfg.Type {
	case "", "null":
		return null.Authenticator{}, nil
	case "jwt":
		if cfg.JWT == nil {
			return nil, fmt.Errorf("jwt authentication requires a JWT stanza")
		}

		key, err := jwt.LoadPrivateKey(cfg.JWT.PrivateKeyFile)
		if err != nil {
			return nil, err
		}

		systemIdentifier := cfg.JWT.SystemIdentifier
		if systemIdentifier == "" {
			systemIdentifier = DefaultSystemIdentifier
		}

		keyIdentifier := cfg.JWT.KeyIdentifier
		if keyIdentifier == "" {
			keyIdentifier = "default"
		}

		ttl := DefaultTokenDuration
		if cfg.JWT.TokenDurationSeconds > 0 {
			ttl = time.Duration(cfg.JWT.TokenDurationSeconds) * time.Second
		}

		return jwt.Authenticator{
			SystemIdentifier: systemIdentifier,
			TTL:              ttl,
			KeyIdentifier:    keyIdentifier,
			PrivateKey:       key,
		}, nil
	case "external":
		userHeader := external.HttpUserHeader
		if cfg.External != nil && cfg.External.UserHeader != "" {
			userHeader = cfg.External.UserHeader
		}

		return external.Authenticator{UserHeader: userHeader}, nil
	default:
		return nil, fmt.Errorf("unknown authentication provider type: %s", cfg.Type)
	}
}

func startHTTPInterface(cfg config.HTTPInterfaceConfig, mapper state.GatewayMapper, o *state.DeviceOrganiser, eventbus state.EventSubscriber, stack layers.OutputStack, l logwrap.Logger) (func() error, error) {
	ap, err := constructAuthenticationProvider(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to construct authentication provider: %w", err)
	}

	r := gorillamux.NewRouter()

	if slices.Contains(cfg.EnabledAPIs, "v1") {
		l.LogInfo(context.Background(), "Mounting v1 API endpoint on /api/v1.")

		v1Router := v1.ConstructRouter(mapper, o, stack, l, ap, eventbus)
		// Use http.StripPrefix to obscure the real path from the v1 api code, though this will cause issues if we
		// ever issue redirects from the API.
		r.PathPrefix("/api/v1").Handler(http.StripPrefix("/api/v1", v1Router))
	}

	if slices.Contains(cfg.EnabledAPIs, "metrics") {
		l.LogInfo(context.Background(), "Mounting Prometheus metrics endpoint on /metrics.")

		r.Path("/metrics").Handler(metrics.ConstructRouter(mapper, o, ap))
	}

	if slices.Contains(cfg.EnabledAPIs, "pprof") {
		l.LogInfo(context.Background(), "Mounting pprof endpoint on /debug/pprof.")

		r.PathPrefix("/debug/pprof").Handler(http.StripPrefix("/debug/pprof", pprof.ConstructRouter(ap)))
	}

	bindAddress := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: bindAddress, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			l.LogError(context.Background(), "Failed to start http server.", logwrap.Err(err))
		}
	}()

	return func() error {
		return srv.Shutdown(context.Background())
	}, nil
}

func awaitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return context.DeadlineExceeded
	}
}

func startMQTTInterface(cfg config.MQTTInterfaceConfig, mapper state.GatewayMapper, o *state.DeviceOrganiser, eventbus state.EventSubscriber, stack layers.OutputStack, l logwrap.Logger) (func() error, error) {
	clientId, err := randomClientID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate random client id: %w", err)
	}

	l.LogInfo(context.Background(), "Constructing new MQTT client.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

	clientOptions := pahomqtt.NewClientOptions()
	clientOptions.ClientID = clientId

	if url, err := url2.Parse(cfg.Server); err != nil {
		l.LogError(context.Background(), "Failed to parse MQTT server URL.", logwrap.Err(err))
		return nil, err
	} else {
		clientOptions.Servers = []*url2.URL{url}
	}

	i := mqtt.Interface{
		GatewayMux:      mapper,
		EventSubscriber: eventbus,
		OutputStack:     stack,
		DeviceInvoker:   invoker.InvokeDeviceAction,
		DeviceExporter:  exporter.NewDeviceExporter(o, l),
		Logger:          l,

		PublishStateOnConnect:  cfg.PublishStateOnConnect,
		PublishAggregatedState: cfg.PublishAggregatedState,
		PublishIndividualState: cfg.PublishIndividualState,
		DeviceFilter:           state.NewDeviceFilter(cfg.Devices),
	}

	lastWillTopic := prefixTopic(cfg.TopicPrefix, "controller/online")

	clientOptions.OnConnect = func(client pahomqtt.Client) {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTEventDuration)
		defer cancel()

		l.LogInfo(ctx, "MQTT client successfully connected.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

		subTopic := prefixTopic(cfg.TopicPrefix, "devices/+/capabilities/+/+/invoke")
		subscribeToken := client.Subscribe(subTopic, cfg.QOS, func(client pahomqtt.Client, message pahomqtt.Message) {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTEventDuration)
			defer cancel()

			if err := i.IncomingMessage(ctx, stripPrefixTopic(cfg.TopicPrefix, message.Topic()), message.Payload()); err != nil {
				l.LogError(ctx, "Failed to handle incoming message.", logwrap.Datum("topic", message.Topic()), logwrap.Err(err))
			}
		})

		if err := awaitToken(ctx, subscribeToken); err != nil {
			l.LogError(ctx, "Failed to subscribe to topic in MQTT.", logwrap.Datum("topic", subTopic), logwrap.Err(err))
		}

		client.Publish(lastWillTopic, cfg.QOS, cfg.Retained, `true`)

		if err := i.Connected(context.Background(), func(ctx context.Context, topic string, payload []byte) error {
			prefixedTopic := prefixTopic(cfg.TopicPrefix, topic)

			token := client.Publish(prefixedTopic, cfg.QOS, cfg.Retained, payload)
			if err := awaitToken(ctx, token); err != nil {
				l.LogError(ctx, "Failed to publish message to MQTT.", logwrap.Datum("topic", prefixedTopic), logwrap.Err(err))
				return err
			}

			return nil
		}); err != nil {
			l.LogError(context.Background(), "Failed to execute connection handler in MQTT interface.", logwrap.Err(err))
		}
	}

	clientOptions.SetConnectionLostHandler(func(client pahomqtt.Client, err error) {
		l.LogInfo(context.Background(), "MQTT client disconnected.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server), logwrap.Err(err))
		i.Disconnected()
	})

	clientOptions.SetWill(lastWillTopic, `false`, cfg.QOS, cfg.Retained)

	if cfg.Credentials != nil {
		clientOptions.SetUsername(cfg.Credentials.Username)
		clientOptions.SetPassword(cfg.Credentials.Password)
	}

	if cfg.TLS != nil {
		tlsConfig, err := constructTLSConfig(*cfg.TLS, l)
		if err != nil {
			return nil, err
		}

		clientOptions.SetTLSConfig(tlsConfig)
	}

	i.Start()

	client := pahomqtt.NewClient(clientOptions)

	go func() {
		ctx := context.Background()

		retry := time.NewTicker(1 * time.Second)
		defer retry.Stop()

		for range retry.C {
			if token := client.Connect(); token.Wait() && token.Error() != nil {
				l.LogError(ctx, "Failed initial connection to MQTT server.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server), logwrap.Err(token.Error()))
			} else {
				l.LogInfo(ctx, "Initial MQTT connection call completed.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))
				return
			}
		}
	}()

	return func() error {
		client.Disconnect(1500)
		i.Stop()
		return nil
	}, nil
}

func constructTLSConfig(cfg config.MQTTTLS, l logwrap.Logger) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.SkipCertificateVerification}

	if cfg.SkipCertificateVerification {
		l.LogWarn(context.Background(), "Set to ignore remote TLS certificate, this is considered insecure.")
	}

	if len(cfg.Cert) > 0 {
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate/key for mqtt: %w", err)
		}

		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	var certPool *x509.CertPool

	if cfg.IgnoreSystemRootCertificates {
		l.LogInfo(context.Background(), "Configured to ignore system root certificates, ensure you are providing your own.")
		certPool = x509.NewCertPool()
	} else {
		var err error

		certPool, err = x509.SystemCertPool()
		if err != nil {
			// This call fails on Windows with an error, but is not typed appropriately so it's impossible to switch, as
			// such we continue on with an empty certificate pool.
			if runtime.GOOS == "windows" {
				l.LogWarn(context.Background(), "Failed to load system certificate pool for root CAs, this is expected on Windows (see Go Issues 16736 and 18609), you must provide the CA root certificate for your servers trust chain.", logwrap.Err(err))
				certPool = x509.NewCertPool()
			} else {
				l.LogError(context.Background(), "Failed to load system certificate pool for root CAs, you may disable loading system certificates by setting $.Config.TLS.IgnoreSystemRootCertificates and provide your own CA certificate.", logwrap.Err(err))
				return nil, fmt.Errorf("failed to load system certificate pool: %w", err)
			}
		}
	}

	if len(cfg.CACert) > 0 {
		caCerts, err := os.ReadFile(filepath.Clean(cfg.CACert))
		if err != nil {
			return nil, fmt.Errorf("failed to load CA TLS certificates for mqtt: %w", err)
		}

		certPool.AppendCertsFromPEM(caCerts)
	}

	tlsConfig.RootCAs = certPool

	return tlsConfig, nil
}

func prefixTopic(topicPrefix string, topic string) string {
	if len(topicPrefix) > 0 {
		return fmt.Sprintf("%s/%s", topicPrefix, topic)
	}

	return topic
}

func stripPrefixTopic(topicPrefix string, topic string) string {
	if len(topicPrefix) > 0 {
		return strings.TrimPrefix(topic, topicPrefix+"/")
	}

	return topic
}

func randomClientID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
