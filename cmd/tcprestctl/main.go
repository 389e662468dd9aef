// Command tcprestctl is a small demo client: it dials a running tcprestd,
// sends one V2 request built from CLI arguments, and prints the decoded
// reply. One subcommand per remote operation.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"

	"github.com/urfave/cli"

	"github.com/liweinan/tcprest"
)

func dial(c *cli.Context) (net.Conn, error) {
	if socketPath := c.GlobalString("socket"); socketPath != "" {
		return net.Dial("unix", socketPath)
	}
	return net.Dial("tcp", c.GlobalString("addr"))
}

func roundTrip(c *cli.Context, request string) (string, error) {
	conn, err := dial(c)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(request + "\n")); err != nil {
		return "", err
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", err
	}
	for len(reply) > 0 && (reply[len(reply)-1] == '\n' || reply[len(reply)-1] == '\r') {
		reply = reply[:len(reply)-1]
	}
	return reply, nil
}

var mappers = tcprest.NewMapperRegistry()

// tcprestd registers its demo resources under bare wire names (see
// registerDemoResources), so calls address them by those names directly.

func callAndPrint(c *cli.Context, className, methodName string, paramTypes []reflect.Type, paramValues []reflect.Value, resultType reflect.Type) error {
	request, err := tcprest.EncodeV2Request(className, methodName, paramTypes, paramValues, mappers, tcprest.CompressionConfig{}, tcprest.SecurityConfig{})
	if err != nil {
		return err
	}
	reply, err := roundTrip(c, request)
	if err != nil {
		return err
	}
	value, err := tcprest.DecodeV2Response(reply, resultType, mappers, tcprest.CompressionConfig{}, tcprest.SecurityConfig{})
	if err != nil {
		fmt.Println(Red("error: " + err.Error()))
		return nil
	}
	if resultType == nil {
		fmt.Println(Green("ok"))
		return nil
	}
	fmt.Println(Green(fmt.Sprintf("%v", value.Interface())))
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "tcprestctl"
	app.Usage = "call the demo resources exposed by tcprestd"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "addr", Value: "127.0.0.1:7171", Usage: "TCP address of tcprestd"},
		cli.StringFlag{Name: "socket", Value: "", Usage: "Unix socket path of tcprestd (overrides addr)"},
	}
	app.Commands = []cli.Command{
		{
			Name:  "hello",
			Usage: "call HelloWorldResource.HelloWorld()",
			Action: func(c *cli.Context) error {
				return callAndPrint(c, "HelloWorldResource", "HelloWorld", nil, nil, reflect.TypeOf(""))
			},
		},
		{
			Name:      "add",
			Usage:     "call Calculator.Add(int,int)",
			ArgsUsage: "A B",
			Action: func(c *cli.Context) error {
				a, err := strconv.Atoi(c.Args().Get(0))
				if err != nil {
					return err
				}
				b, err := strconv.Atoi(c.Args().Get(1))
				if err != nil {
					return err
				}
				intType := reflect.TypeOf(int(0))
				return callAndPrint(c, "Calculator", "Add",
					[]reflect.Type{intType, intType},
					[]reflect.Value{reflect.ValueOf(a), reflect.ValueOf(b)},
					intType)
			},
		},
		{
			Name:      "echo",
			Usage:     "call EchoResource.Echo(String)",
			ArgsUsage: "TEXT",
			Action: func(c *cli.Context) error {
				strType := reflect.TypeOf("")
				return callAndPrint(c, "EchoResource", "Echo",
					[]reflect.Type{strType},
					[]reflect.Value{reflect.ValueOf(c.Args().Get(0))},
					strType)
			},
		},
		{
			Name:      "validate-age",
			Usage:     "call ValidationResource.ValidateAge(int), may raise a business exception",
			ArgsUsage: "AGE",
			Action: func(c *cli.Context) error {
				age, err := strconv.Atoi(c.Args().Get(0))
				if err != nil {
					return err
				}
				intType := reflect.TypeOf(int(0))
				return callAndPrint(c, "ValidationResource", "ValidateAge",
					[]reflect.Type{intType}, []reflect.Value{reflect.ValueOf(age)}, intType)
			},
		},
		{
			Name:  "cause-null-pointer",
			Usage: "call ValidationResource.CauseNullPointer(), raises a server error",
			Action: func(c *cli.Context) error {
				return callAndPrint(c, "ValidationResource", "CauseNullPointer", nil, nil, reflect.TypeOf(""))
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, Red(err.Error()))
		os.Exit(1)
	}
}
